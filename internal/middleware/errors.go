package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
	"github.com/charlesng35/userapi/pkg/response"
)

const internalErrorMessage = "Internal Server Error"

// Errors renders the last error attached to the context as the JSON error envelope.
// Outside production the envelope carries the stack and status code; in production
// a 500 is reduced to a generic message.
func Errors(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperrors.FromError(c.Errors.Last().Err)
		status := appErr.Status()
		stack := appErr.Stack()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("message", appErr.Message),
			zap.Int("status", status),
			zap.String("stack", stack),
		}
		if appErr.Internal != nil {
			fields = append(fields, zap.Error(appErr.Internal))
		}
		log := logger.WithModule("http")
		if status >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
		} else {
			log.Warn("request failed", fields...)
		}

		if c.Writer.Written() {
			return
		}

		info := response.ErrorInfo{Message: appErr.Message}
		if production {
			if status == http.StatusInternalServerError {
				info.Message = internalErrorMessage
			}
		} else {
			info.Stack = stack
			info.StatusCode = status
		}
		response.Failure(c, status, info)
	}
}

// Abort attaches err to the context for the Errors middleware and stops the chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// NotFoundHandler reports unknown routes through the error envelope.
func NotFoundHandler(c *gin.Context) {
	Abort(c, apperrors.NewNotFound("Route not found"))
}
