package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aphorist/aphorist/logger"
)

// HeaderRequestID is the header carrying the request correlation id. Inbound
// values are trusted and echoed back; absent ones are minted.
const HeaderRequestID = "X-Request-Id"

// RequestID stores a correlation id in the request context under
// logger.FieldRequestID and echoes it on the response, so log lines and the
// client's view of a request can be matched up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(logger.FieldRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
