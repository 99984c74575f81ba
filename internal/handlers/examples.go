package handlers

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/middleware"
	"github.com/charlesng35/userapi/internal/monitoring/checks"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
)

const (
	exampleKey         = "example:test"
	exampleFallbackKey = "example:test:fallback"
	exampleTTL         = 60 * time.Second
	exampleFallbackTTL = 30 * time.Second

	healthCheckKey = "health:check"
	healthCheckTTL = 10 * time.Second

	statsKey    = "stats:requests"
	statsWindow = time.Hour
)

// Service status values reported by the status check.
const (
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
	StatusNotConfigured = "not_configured"
)

// ExampleDeps wires the diagnostic routes to the cache tiers and store pings.
type ExampleDeps struct {
	Environment string
	Primary     *cache.Facade
	Secondary   *cache.Facade

	// Ping funcs return checks.ErrNotConfigured for services without settings.
	PingStore         checks.Pinger
	PingDocumentStore checks.Pinger
}

type ExampleHandler struct {
	deps ExampleDeps
}

type examplePayload struct {
	Message     string  `json:"message"`
	Timestamp   string  `json:"timestamp"`
	Random      float64 `json:"random"`
	Environment string  `json:"environment"`
}

func NewExampleHandler(deps ExampleDeps) *ExampleHandler {
	return &ExampleHandler{deps: deps}
}

// GET /api/examples/cache-test
func (h *ExampleHandler) CacheTest(c *gin.Context) {
	ctx := requestContext(c)

	var cached examplePayload
	switch h.deps.Primary.Get(ctx, exampleKey, &cached) {
	case cache.OutcomeOK:
		h.cacheTestResult(c, "Data from Upstash Redis cache", cached, "upstash_redis")
		return
	case cache.OutcomeMiss:
		data := h.newPayload()
		if h.deps.Primary.Set(ctx, exampleKey, data, exampleTTL) == cache.OutcomeOK {
			h.cacheTestResult(c, "Data fetched and cached in Upstash Redis", data, "api_and_cached")
			return
		}
	}

	switch h.deps.Secondary.Get(ctx, exampleFallbackKey, &cached) {
	case cache.OutcomeOK:
		h.cacheTestResult(c, "Data from fallback Redis cache", cached, "fallback_redis")
		return
	case cache.OutcomeMiss:
		data := h.newPayload()
		if h.deps.Secondary.Set(ctx, exampleFallbackKey, data, exampleFallbackTTL) == cache.OutcomeOK {
			h.cacheTestResult(c, "Data fetched and cached in fallback Redis", data, "api_and_fallback_cached")
			return
		}
	}

	middleware.Abort(c, apperrors.NewServiceUnavailable("Cache service unavailable"))
}

// GET /api/examples/status
func (h *ExampleHandler) Status(c *gin.Context) {
	ctx := requestContext(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"services": gin.H{
			"api":           "running",
			"timestamp":     timestamp(),
			"upstash_redis": h.primaryStatus(ctx),
			"local_redis":   facadeStatus(ctx, h.deps.Secondary),
			"database":      pingStatus(ctx, h.deps.PingStore),
			"mongodb":       pingStatus(ctx, h.deps.PingDocumentStore),
		},
	})
}

// GET /api/examples/cache-stats
func (h *ExampleHandler) CacheStats(c *gin.Context) {
	ctx := requestContext(c)

	total, outcome := h.deps.Primary.Increment(ctx, statsKey)
	if outcome != cache.OutcomeOK {
		middleware.Abort(c, apperrors.NewServiceUnavailable("Stats service unavailable"))
		return
	}
	h.deps.Primary.Expire(ctx, statsKey, statsWindow)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"total_requests": total,
			"timestamp":      timestamp(),
			"cache_backend":  "upstash_redis",
		},
	})
}

func (h *ExampleHandler) newPayload() examplePayload {
	return examplePayload{
		Message:     "Hello from Vercel Functions API!",
		Timestamp:   timestamp(),
		Random:      rand.Float64(),
		Environment: h.deps.Environment,
	}
}

func (h *ExampleHandler) cacheTestResult(c *gin.Context, message string, data examplePayload, source string) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   message,
		"data":      data,
		"source":    source,
		"timestamp": timestamp(),
	})
}

func (h *ExampleHandler) primaryStatus(ctx context.Context) string {
	if !h.deps.Primary.Configured(ctx) {
		return StatusNotConfigured
	}
	if h.deps.Primary.Set(ctx, healthCheckKey, "ok", healthCheckTTL) != cache.OutcomeOK {
		return StatusDisconnected
	}
	h.deps.Primary.Delete(ctx, healthCheckKey)
	return StatusConnected
}

func facadeStatus(ctx context.Context, facade *cache.Facade) string {
	if !facade.Configured(ctx) {
		return StatusNotConfigured
	}
	if facade.Ping(ctx) != cache.OutcomeOK {
		return StatusDisconnected
	}
	return StatusConnected
}

func pingStatus(ctx context.Context, ping checks.Pinger) string {
	if ping == nil {
		return StatusNotConfigured
	}
	err := ping(ctx)
	switch {
	case err == nil:
		return StatusConnected
	case errors.Is(err, checks.ErrNotConfigured):
		return StatusNotConfigured
	default:
		return StatusDisconnected
	}
}
