package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aphorist/aphorist/errors"
	"github.com/aphorist/aphorist/logger"
)

// Recovery converts a handler panic into the standard error envelope with
// code INTERNAL_ERROR. The panic value and stack are logged with the request
// correlation id; the response body carries neither.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", r),
					logger.FieldRequestID, c.GetString(logger.FieldRequestID),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					apperrors.Internal(nil).ToResponse())
			}
		}()
		c.Next()
	}
}
