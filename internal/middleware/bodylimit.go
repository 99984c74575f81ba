package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/userapi/pkg/errors"
)

// DefaultBodyLimit caps JSON request bodies at 10 MiB.
const DefaultBodyLimit int64 = 10 << 20

// BodyLimit rejects requests whose body exceeds limit bytes.
// Declared oversize bodies are refused up front; streamed bodies fail on read.
func BodyLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			Abort(c, apperrors.ErrPayloadTooLarge)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
