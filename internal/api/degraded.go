package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/handlers"
	"github.com/charlesng35/userapi/internal/middleware"
)

const degradedHint = "Configure DATABASE_URL and wait for backend routes to mount"

// NewDegradedRouter serves the minimal route set used when the full route
// table cannot be built. cause is echoed by GET /api.
func NewDegradedRouter(cfg *app.Config, cause error) *gin.Engine {
	if cfg == nil {
		cfg = &app.Config{}
	}

	r := gin.New()
	useMiddleware(r, cfg, nil)

	r.GET("/health", handlers.Health(cfg.Server.Environment, defaultHealthMessage))
	r.GET("/api/health", handlers.Health(cfg.Server.Environment, apiHealthMessage))

	index := func(c *gin.Context) {
		body := gin.H{"message": "API is working (degraded)"}
		if cause != nil {
			body["error"] = cause.Error()
		}
		c.JSON(http.StatusOK, body)
	}
	r.GET("/api", index)
	r.GET("/api/", index)

	notReady := func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Users route not ready yet",
			"hint":    degradedHint,
		})
	}
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/api/users" || strings.HasPrefix(path, "/api/users/") {
			notReady(c)
			return
		}
		middleware.NotFoundHandler(c)
	})
	return r
}
