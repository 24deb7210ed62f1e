package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trashposts/post-search/internal/errs"
)

// BodyLimit rejects bodies larger than maxBytes. A declared Content-Length
// is checked up front; chunked bodies are cut off by http.MaxBytesReader and
// surface as *http.MaxBytesError to the handler.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			errs.HandleError(c, errs.New(errs.ErrPayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytes)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
