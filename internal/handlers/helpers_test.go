package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Errors(false))
	r.Use(middleware.Recovery())
	r.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))
	return r
}

func perform(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
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
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	require.Equal(t, false, body["success"])
	errInfo, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", rec.Body.String())
	return errInfo["message"].(string)
}

func dbFacade(name string, db *gorm.DB) *cache.Facade {
	return cache.NewFacade(name, cache.Static(cache.NewDatabaseBackend(db)))
}

func unavailableFacade(name string) *cache.Facade {
	return cache.NewFacade(name, func(context.Context) (cache.Backend, error) {
		return nil, cache.ErrBackendClosed
	})
}
