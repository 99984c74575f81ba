package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
	"github.com/charlesng35/userapi/pkg/response"
)

func newErrorRouter(production bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Errors(production))
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) {
		Abort(c, errors.New("database exploded"))
	})
	r.GET("/missing", func(c *gin.Context) {
		Abort(c, apperrors.NewNotFound("User not found"))
	})
	r.GET("/conflict", func(c *gin.Context) {
		Abort(c, apperrors.NewConflict("Email already exists").WithInternal(errors.New("23505")))
	})
	r.GET("/ok", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"ok": true})
	})
	r.NoRoute(NotFoundHandler)
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestErrorsDevelopmentExposesStack(t *testing.T) {
	r := newErrorRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	payload := decodeEnvelope(t, w)
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	require.Equal(t, "database exploded", payload.Error.Message)
	require.Equal(t, http.StatusInternalServerError, payload.Error.StatusCode)
	require.NotEmpty(t, payload.Error.Stack)
	require.Contains(t, payload.Error.Stack, "database exploded")
}

func TestErrorsProductionHidesStack(t *testing.T) {
	r := newErrorRouter(true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "stack")
	require.NotContains(t, w.Body.String(), "database exploded")

	payload := decodeEnvelope(t, w)
	require.Equal(t, "Internal Server Error", payload.Error.Message)
	require.Zero(t, payload.Error.StatusCode)
}

func TestErrorsProductionKeepsClientMessages(t *testing.T) {
	r := newErrorRouter(true)

	cases := map[string]struct {
		status  int
		message string
	}{
		"/missing":  {http.StatusNotFound, "User not found"},
		"/conflict": {http.StatusConflict, "Email already exists"},
		"/nowhere":  {http.StatusNotFound, "Route not found"},
	}

	for path, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, tc.status, w.Code, path)
		require.JSONEq(t, `{"success":false,"error":{"message":"`+tc.message+`"}}`, w.Body.String(), path)
	}
}

func TestErrorsPassThroughSuccess(t *testing.T) {
	r := newErrorRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decodeEnvelope(t, w).Success)
}

func TestErrorsLogsEveryFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := newErrorRouter(true)
	for _, path := range []string{"/boom", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	require.Equal(t, "GET", first["method"])
	require.Equal(t, "/boom", first["path"])
	require.Equal(t, "database exploded", first["message"])
	require.EqualValues(t, http.StatusInternalServerError, first["status"])
	require.True(t, strings.Contains(first["stack"].(string), "database exploded"))
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
