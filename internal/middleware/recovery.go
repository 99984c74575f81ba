package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
)

// Recovery converts panics into an internal error rendered by the Errors middleware.
// It must be registered after Errors.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", r),
				)
				Abort(c, apperrors.FromError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
