package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/database/testutil"
	"github.com/charlesng35/userapi/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(environment string) *app.Config {
	cfg := &app.Config{}
	cfg.Server.Environment = environment
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Monitoring.Health.Enabled = true
	return cfg
}

func newTestRouter(t *testing.T, cfg *app.Config, db *gorm.DB) *gin.Engine {
	t.Helper()
	var primary *cache.Facade
	if db != nil {
		primary = cache.NewFacade("primary", cache.Static(cache.NewDatabaseBackend(db)))
	}
	r, err := NewRouter(Deps{
		Config:    cfg,
		Store:     services.StaticStore(db),
		Primary:   primary,
		Secondary: cache.NewFacade("secondary", nil),
		PingStore: func(ctx context.Context) error {
			if db == nil {
				return errors.New("no database")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
	require.NoError(t, err)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRouterRequiresDeps(t *testing.T) {
	_, err := NewRouter(Deps{})
	require.Error(t, err)

	_, err = NewRouter(Deps{Config: testConfig(app.EnvDevelopment)})
	require.Error(t, err)
}

func TestHealthAndIndex(t *testing.T) {
	r := newTestRouter(t, testConfig(app.EnvDevelopment), nil)

	rec := perform(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "OK", body["status"])
	require.Equal(t, "Server is running", body["message"])
	require.Equal(t, app.EnvDevelopment, body["environment"])

	rec = perform(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "API is healthy", decode(t, rec)["message"])

	for _, path := range []string{"/api", "/api/"} {
		rec = perform(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		body = decode(t, rec)
		require.Equal(t, "API is working", body["message"])
		require.Equal(t, "1.0.0", body["version"])
	}

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUsersRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	r := newTestRouter(t, testConfig(app.EnvDevelopment), db)

	rec := perform(r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, decode(t, rec)["count"])

	rec = perform(r, http.MethodPost, "/api/users", `{"name":"Grace","email":"Grace@Example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, "User created successfully", body["message"])
	data := body["data"].(map[string]any)
	require.Equal(t, "Grace@Example.com", data["email"])

	rec = perform(r, http.MethodGet, "/api/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = perform(r, http.MethodGet, "/api/users/9999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, testConfig(app.EnvDevelopment), nil)

	rec := perform(r, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Route not found", body["error"].(map[string]any)["message"])
}

func TestUsersWithoutStore(t *testing.T) {
	r := newTestRouter(t, testConfig(app.EnvDevelopment), nil)

	rec := perform(r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "Database not configured", decode(t, rec)["error"].(map[string]any)["message"])
}

func TestInternalErrorsFlattenedInProduction(t *testing.T) {
	cases := []struct {
		environment string
		message     string
		withStack   bool
	}{
		{app.EnvProduction, "Internal Server Error", false},
		{app.EnvDevelopment, "panic: boom", true},
	}

	for _, tc := range cases {
		t.Run(tc.environment, func(t *testing.T) {
			r := newTestRouter(t, testConfig(tc.environment), nil)
			r.GET("/api/boom", func(*gin.Context) { panic("boom") })

			rec := perform(r, http.MethodGet, "/api/boom", "")
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			info := decode(t, rec)["error"].(map[string]any)
			require.Equal(t, tc.message, info["message"])
			_, hasStack := info["stack"]
			require.Equal(t, tc.withStack, hasStack)
		})
	}
}

func TestClientErrorsKeepMessageInProduction(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	r := newTestRouter(t, testConfig(app.EnvProduction), db)

	rec := perform(r, http.MethodPost, "/api/users", `{"name":"","email":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	info := decode(t, rec)["error"].(map[string]any)
	require.Equal(t, "Name and email are required", info["message"])
	require.NotContains(t, info, "stack")
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, testConfig(app.EnvDevelopment), nil)
	perform(r, http.MethodGet, "/health", "")

	rec := perform(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "userapi_api_latency_seconds")
}

func TestReadiness(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	rec := perform(newTestRouter(t, testConfig(app.EnvDevelopment), db), http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "up", decode(t, rec)["status"])

	rec = perform(newTestRouter(t, testConfig(app.EnvDevelopment), nil), http.MethodGet, "/api/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "down", body["status"])
}

func TestReadinessDisabled(t *testing.T) {
	cfg := testConfig(app.EnvDevelopment)
	cfg.Monitoring.Health.Enabled = false
	rec := perform(newTestRouter(t, cfg, nil), http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	cfg := testConfig(app.EnvDevelopment)
	cfg.Server.RateLimit = app.RateLimitConfig{Requests: 1, Window: time.Minute}
	r := newTestRouter(t, cfg, db)

	rec := perform(r, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = perform(r, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = perform(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
