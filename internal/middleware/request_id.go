package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trashposts/post-search/internal/validator"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID propagates the caller's X-Request-ID when it is a UUID and
// generates one otherwise. The id is echoed in the response header.
func RequestID() gin.HandlerFunc {
	v := validator.New()
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if err := v.ValidateRequestID(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
