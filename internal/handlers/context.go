package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// isoTimestamp matches the millisecond precision ISO-8601 timestamps clients expect.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func timestamp() string {
	return time.Now().UTC().Format(isoTimestamp)
}
