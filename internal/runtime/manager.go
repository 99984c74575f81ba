// Package runtime owns the process-wide connections to backing services and
// mounts the HTTP routes once they have been attempted.
package runtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/charlesng35/userapi/internal/api"
	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/database"
	"github.com/charlesng35/userapi/internal/monitoring/checks"
	"github.com/charlesng35/userapi/internal/services"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
	"github.com/charlesng35/userapi/pkg/metrics"
)

// Service names used in logs, metrics and Connect errors.
const (
	ServiceStore          = "database"
	ServiceDocumentStore  = "mongodb"
	ServicePrimaryCache   = "upstash_redis"
	ServiceSecondaryCache = "local_redis"
)

const (
	defaultStoreTimeout = 10 * time.Second
	defaultCacheTimeout = 5 * time.Second
	passKey             = "connect"
)

// RouteBuilder constructs the full route table. A failing builder causes the
// degraded route set to be mounted instead.
type RouteBuilder func(m *Manager) (http.Handler, error)

// Option customises a Manager.
type Option func(*Manager)

// WithDialers overrides the per-service dial funcs.
func WithDialers(d Dialers) Option {
	return func(m *Manager) {
		m.dialers = d
	}
}

// WithRouteBuilder overrides the route table constructor.
func WithRouteBuilder(b RouteBuilder) Option {
	return func(m *Manager) {
		if b != nil {
			m.builder = b
		}
	}
}

// WithHealthMessage sets the message reported by GET /health.
func WithHealthMessage(message string) Option {
	return func(m *Manager) {
		m.healthMessage = message
	}
}

// WithCORSOrigins restricts CORS to the given origins. Without it the request
// origin is reflected.
func WithCORSOrigins(origins ...string) Option {
	return func(m *Manager) {
		m.corsOrigins = origins
	}
}

// Manager connects backing services on demand and serves the mounted routes.
type Manager struct {
	cfg      *app.Config
	services app.Services
	dialers  Dialers
	builder  RouteBuilder
	log      *zap.Logger

	healthMessage string
	corsOrigins   []string

	store     *slot[*gorm.DB]
	documents *slot[*mongo.Client]
	primary   *slot[cache.Backend]
	secondary *slot[cache.Backend]

	primaryFacade   *cache.Facade
	secondaryFacade *cache.Facade

	pass      singleflight.Group
	connected atomic.Bool

	mountOnce     sync.Once
	handler       http.Handler
	routesMounted atomic.Bool
	degraded      atomic.Bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New constructs a Manager. Nothing is dialled until EnsureConnections,
// Connect or a lazy accessor runs.
func New(cfg *app.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = &app.Config{}
	}
	m := &Manager{
		cfg:      cfg,
		services: cfg.Services(),
		builder:  DefaultRoutes,
		log:      logger.WithModule("runtime"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dialers = m.dialers.withDefaults()

	storeTimeout := durationOr(cfg.Database.ConnectTimeout, defaultStoreTimeout)
	m.store = newSlot(ServiceStore, storeTimeout, func(ctx context.Context) (*gorm.DB, error) {
		return m.dialers.Store(ctx, m.cfg)
	}, database.Close, m.log)
	m.documents = newSlot(ServiceDocumentStore, storeTimeout, func(ctx context.Context) (*mongo.Client, error) {
		return m.dialers.DocumentStore(ctx, m.cfg)
	}, func(c *mongo.Client) error {
		return c.Disconnect(context.Background())
	}, m.log)
	m.primary = newSlot(ServicePrimaryCache, cacheTimeout(cfg.Cache.Upstash.DialTimeout, cfg.Cache.Upstash.CommandTimeout), func(ctx context.Context) (cache.Backend, error) {
		return m.dialers.PrimaryCache(ctx, m.cfg)
	}, closeBackend, m.log)
	m.secondary = newSlot(ServiceSecondaryCache, cacheTimeout(cfg.Cache.Redis.DialTimeout, cfg.Cache.Redis.CommandTimeout), func(ctx context.Context) (cache.Backend, error) {
		return m.dialers.SecondaryCache(ctx, m.cfg)
	}, closeBackend, m.log)

	m.primaryFacade = cache.NewFacade("primary", m.bindPrimary)
	m.secondaryFacade = cache.NewFacade("secondary", m.bindSecondary)
	return m
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *app.Config { return m.cfg }

// EnsureConnections attempts every configured service that is not yet
// connected, then mounts the routes. Failures are logged, never returned.
func (m *Manager) EnsureConnections(ctx context.Context) {
	if !m.connected.Load() {
		_, _, _ = m.pass.Do(passKey, func() (any, error) {
			return nil, m.connectAll(ctx)
		})
	}
	m.mount()
}

// Connect is the strict variant used by the standalone server: it returns the
// combined error of every configured service that failed to connect.
func (m *Manager) Connect(ctx context.Context) error {
	var err error
	if !m.connected.Load() {
		_, err, _ = m.pass.Do(passKey, func() (any, error) {
			return nil, m.connectAll(ctx)
		})
	}
	m.mount()
	return err
}

func (m *Manager) connectAll(ctx context.Context) error {
	type attempt struct {
		configured bool
		ensure     func(context.Context) error
		loaded     func() bool
	}
	attempts := []attempt{
		{m.services.Store, ensureFn(m.store), loadedFn(m.store)},
		{m.services.DocumentStore, ensureFn(m.documents), loadedFn(m.documents)},
		{m.services.PrimaryCache, ensureFn(m.primary), loadedFn(m.primary)},
		{m.services.SecondaryCache, ensureFn(m.secondary), loadedFn(m.secondary)},
	}

	var (
		mu      sync.Mutex
		errs    error
		g, gctx = errgroup.WithContext(context.WithoutCancel(ctx))
	)
	for _, a := range attempts {
		if !a.configured || a.loaded() {
			continue
		}
		a := a
		g.Go(func() error {
			if err := a.ensure(gctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs == nil {
		m.connected.Store(true)
		m.log.Info("backing services ready", zap.Bool("any_configured", m.services.Any()))
		return nil
	}
	m.log.Warn("backing services partially unavailable", zap.Error(errs))
	return errs
}

func ensureFn[T any](s *slot[T]) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := s.Ensure(ctx); err != nil {
			return &serviceError{service: s.name, err: err}
		}
		return nil
	}
}

func loadedFn[T any](s *slot[T]) func() bool {
	return func() bool {
		_, ok := s.Load()
		return ok
	}
}

type serviceError struct {
	service string
	err     error
}

func (e *serviceError) Error() string { return e.service + ": " + e.err.Error() }
func (e *serviceError) Unwrap() error { return e.err }

func (m *Manager) mount() {
	m.mountOnce.Do(func() {
		handler, err := m.builder(m)
		if err == nil && handler == nil {
			err = errors.New("route builder returned no handler")
		}
		if err != nil {
			m.log.Error("route table unavailable, serving degraded routes", zap.Error(err))
			handler = api.NewDegradedRouter(m.cfg, err)
			m.degraded.Store(true)
			metrics.DegradedRoutes.Set(1)
		} else {
			metrics.DegradedRoutes.Set(0)
		}
		m.handler = handler
		m.routesMounted.Store(true)
	})
}

// ServeHTTP ensures connections and dispatches to the mounted routes.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.EnsureConnections(r.Context())
	m.handler.ServeHTTP(w, r)
}

// Handler returns the mounted routes without attempting connections.
func (m *Manager) Handler() http.Handler {
	m.mount()
	return m.handler
}

// Store returns the relational store, connecting on first use.
func (m *Manager) Store(ctx context.Context) (*gorm.DB, error) {
	if !m.services.Store {
		return nil, apperrors.NewServiceUnavailable("Database not configured")
	}
	db, err := m.store.Ensure(ctx)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable("Database unavailable").WithInternal(err)
	}
	return db, nil
}

// DocumentStore returns the MongoDB client, connecting on first use.
func (m *Manager) DocumentStore(ctx context.Context) (*mongo.Client, error) {
	if !m.services.DocumentStore {
		return nil, apperrors.NewServiceUnavailable("Document store not configured")
	}
	client, err := m.documents.Ensure(ctx)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable("Document store unavailable").WithInternal(err)
	}
	return client, nil
}

// PrimaryCache returns the Upstash facade.
func (m *Manager) PrimaryCache() *cache.Facade { return m.primaryFacade }

// SecondaryCache returns the REDIS_URL facade, served by the relational store
// when no Redis URL is configured and the database fallback is enabled.
func (m *Manager) SecondaryCache() *cache.Facade { return m.secondaryFacade }

func (m *Manager) bindPrimary(ctx context.Context) (cache.Backend, error) {
	if !m.services.PrimaryCache {
		return nil, cache.ErrNotConfigured
	}
	return m.primary.Ensure(ctx)
}

func (m *Manager) bindSecondary(ctx context.Context) (cache.Backend, error) {
	if m.services.SecondaryCache {
		return m.secondary.Ensure(ctx)
	}
	if m.cfg.Cache.DatabaseFallback {
		if db, ok := m.store.Load(); ok {
			return cache.NewDatabaseBackend(db), nil
		}
	}
	return nil, cache.ErrNotConfigured
}

// PingStore pings the relational store for status and readiness reports.
func (m *Manager) PingStore(ctx context.Context) error {
	if !m.services.Store {
		return checks.ErrNotConfigured
	}
	db, err := m.store.Ensure(ctx)
	if err != nil {
		return err
	}
	return database.Ping(ctx, db)
}

// PingDocumentStore pings MongoDB for status and readiness reports.
func (m *Manager) PingDocumentStore(ctx context.Context) error {
	if !m.services.DocumentStore {
		return checks.ErrNotConfigured
	}
	client, err := m.documents.Ensure(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

// Connected reports whether a pass connected every configured service.
func (m *Manager) Connected() bool { return m.connected.Load() }

// RoutesMounted reports whether a route set has been installed.
func (m *Manager) RoutesMounted() bool { return m.routesMounted.Load() }

// Degraded reports whether the degraded route set is being served.
func (m *Manager) Degraded() bool { return m.degraded.Load() }

// Shutdown closes every open connection. Later calls return the first result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			done <- multierr.Combine(
				m.primary.Close(),
				m.secondary.Close(),
				m.documents.Close(),
				m.store.Close(),
			)
		}()
		select {
		case err := <-done:
			m.shutdownErr = err
		case <-ctx.Done():
			m.shutdownErr = ctx.Err()
		}
	})
	return m.shutdownErr
}

// DefaultRoutes builds the full route table on top of the manager's accessors.
func DefaultRoutes(m *Manager) (http.Handler, error) {
	return api.NewRouter(api.Deps{
		Config:            m.cfg,
		Store:             services.StoreFunc(m.Store),
		Primary:           m.PrimaryCache(),
		Secondary:         m.SecondaryCache(),
		PingStore:         m.PingStore,
		PingDocumentStore: m.PingDocumentStore,
		HealthMessage:     m.healthMessage,
		CORSOrigins:       m.corsOrigins,
	})
}

func closeBackend(b cache.Backend) error {
	if b == nil {
		return nil
	}
	return b.Close()
}

func cacheTimeout(dial, command time.Duration) time.Duration {
	return durationOr(dial, defaultCacheTimeout) + durationOr(command, 0)
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
