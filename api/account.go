package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aphorist/aphorist/auth"
	apperrors "github.com/aphorist/aphorist/errors"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/server"
	"github.com/aphorist/aphorist/user"
	"github.com/aphorist/aphorist/validation"
)

// registerRequest arrives as query parameters.
type registerRequest struct {
	Username string `form:"username" validate:"required,max=64"`
	Password string `form:"password" validate:"required,max=72"`
	Email    string `form:"email" validate:"omitempty,email"`
}

// tokenRequest arrives as a form-encoded body.
type tokenRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// tokenResponse is the login success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles POST /register. A duplicate username responds 400; the
// stored record keeps only the first registration's hash.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.metrics.RecordRegistration(c.Request.Context(), false)
		switch {
		case errors.Is(err, user.ErrAlreadyExists):
			server.RespondWithError(c, apperrors.AlreadyExists("user"))
		case errors.Is(err, user.ErrUnavailable):
			server.RespondWithError(c, apperrors.ServiceUnavailable("user store"))
		default:
			server.RespondWithError(c, err)
		}
		return
	}

	h.metrics.RecordRegistration(c.Request.Context(), true)
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully"})
}

// Token handles POST /token. Bad credentials respond with one generic 401
// regardless of whether the username or the password was wrong; a store
// outage responds 503 instead of masquerading as an auth failure.
func (h *Handler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	accessToken, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(c.Request.Context(), false)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			server.RespondWithError(c, apperrors.Unauthorized("Incorrect username or password"))
		case errors.Is(err, user.ErrUnavailable):
			server.RespondWithError(c, apperrors.ServiceUnavailable("user store"))
		default:
			server.RespondWithError(c, err)
		}
		return
	}

	h.metrics.RecordLogin(c.Request.Context(), true)
	h.log.Info("Login succeeded", logger.Fields(logger.FieldUsername, req.Username))
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}
