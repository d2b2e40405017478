package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aphorist/aphorist/errors"
	"github.com/aphorist/aphorist/user"
)

// ContextUserKey is the Gin context key under which the authenticated user
// is stored for downstream handlers.
const ContextUserKey = "auth_user"

// Authenticator resolves a bearer token to a live user record.
// *auth.Service satisfies it.
type Authenticator interface {
	UserFromToken(ctx context.Context, token string) (*user.User, error)
}

// RequireUser returns a Gin middleware that authenticates the request's
// Bearer token. Every failure mode (missing or malformed header, bad
// signature, expired token, unknown or disabled subject) yields the same
// generic 401 with a WWW-Authenticate challenge, so callers cannot probe
// which check failed. A store outage is the one distinct outcome: it
// surfaces as 503, not as an authentication failure.
func RequireUser(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			rejectUnauthorized(c)
			return
		}

		u, err := authn.UserFromToken(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, user.ErrUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					apperrors.ServiceUnavailable("user store").ToResponse())
				return
			}
			rejectUnauthorized(c)
			return
		}

		c.Set(ContextUserKey, u)
		c.Next()
	}
}

// UserFromContext returns the authenticated user stored by RequireUser.
func UserFromContext(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func rejectUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		apperrors.Unauthorized("").ToResponse())
}
