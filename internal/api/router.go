package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/handlers"
	"github.com/charlesng35/userapi/internal/middleware"
	"github.com/charlesng35/userapi/internal/monitoring"
	"github.com/charlesng35/userapi/internal/monitoring/checks"
	"github.com/charlesng35/userapi/internal/services"
)

const (
	defaultHealthMessage = "Server is running"
	apiHealthMessage     = "API is healthy"
	checkTimeout         = 2 * time.Second
)

// Deps carries everything the route table needs. Backing services are
// resolved lazily through Store and the cache facades.
type Deps struct {
	Config    *app.Config
	Store     services.StoreProvider
	Primary   *cache.Facade
	Secondary *cache.Facade

	PingStore         checks.Pinger
	PingDocumentStore checks.Pinger

	// HealthMessage is reported by GET /health.
	HealthMessage string
	// CORSOrigins restricts allowed origins. Empty reflects the request origin.
	CORSOrigins []string
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Store == nil {
		return nil, errors.New("store provider must be provided")
	}
	cfg := deps.Config

	r := gin.New()
	useMiddleware(r, cfg, deps.CORSOrigins)

	message := deps.HealthMessage
	if message == "" {
		message = defaultHealthMessage
	}
	r.GET("/health", handlers.Health(cfg.Server.Environment, message))
	r.GET("/api/health", handlers.Health(cfg.Server.Environment, apiHealthMessage))
	if cfg.Monitoring.Health.Enabled {
		ready := handlers.Readiness(readinessChecks(deps))
		r.GET("/health/ready", ready)
		r.GET("/api/health/ready", ready)
	}

	api := r.Group("/api")
	if limit := cfg.Server.RateLimit; limit.Requests > 0 {
		api.Use(middleware.RateLimit(deps.Primary, limit.Requests, limit.Window))
	}
	api.GET("", handlers.Index())
	api.GET("/", handlers.Index())

	userHandler, err := handlers.NewUserHandler(deps.Store, deps.Primary)
	if err != nil {
		return nil, err
	}
	registerUserRoutes(api, userHandler)

	registerExampleRoutes(api, handlers.NewExampleHandler(handlers.ExampleDeps{
		Environment:       cfg.Server.Environment,
		Primary:           deps.Primary,
		Secondary:         deps.Secondary,
		PingStore:         deps.PingStore,
		PingDocumentStore: deps.PingDocumentStore,
	}))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)
	return r, nil
}

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	users := api.Group("/users")
	{
		users.GET("", handler.List)
		users.GET("/:id", handler.Get)
		users.POST("", handler.Create)
	}
}

func registerExampleRoutes(api *gin.RouterGroup, handler *handlers.ExampleHandler) {
	examples := api.Group("/examples")
	{
		examples.GET("/cache-test", handler.CacheTest)
		examples.GET("/status", handler.Status)
		examples.GET("/cache-stats", handler.CacheStats)
	}
}

// useMiddleware installs the global chain. Errors must precede Recovery so
// recovered panics are rendered by the same translator.
func useMiddleware(r *gin.Engine, cfg *app.Config, origins []string) {
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(origins...))
	r.Use(middleware.Errors(cfg.IsProduction()))
	r.Use(middleware.Recovery())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
}

func readinessChecks(deps Deps) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager()
	if deps.PingStore != nil {
		manager.Register(checks.Database(deps.PingStore, checkTimeout))
	}
	if deps.PingDocumentStore != nil {
		manager.Register(checks.Service("mongodb", deps.PingDocumentStore, checkTimeout))
	}
	if deps.Primary != nil {
		manager.Register(checks.Cache(deps.Primary, checkTimeout))
	}
	if deps.Secondary != nil {
		manager.Register(checks.Cache(deps.Secondary, checkTimeout))
	}
	return manager
}
