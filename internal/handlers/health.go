package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userapi/internal/monitoring"
)

// Health returns the liveness payload. It never touches a backing service.
func Health(environment, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "OK",
			"message":     message,
			"timestamp":   timestamp(),
			"environment": environment,
		})
	}
}

// Readiness evaluates the registered dependency checks; 503 when a required one is down.
func Readiness(manager *monitoring.HealthManager) gin.HandlerFunc {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// Index describes the mounted API surface.
func Index() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "API is working",
			"version": "1.0.0",
			"endpoints": gin.H{
				"users":    "/api/users",
				"examples": "/api/examples",
				"health":   "/health",
			},
		})
	}
}
