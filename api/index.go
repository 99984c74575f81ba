// Package handler exposes the API as a single serverless function.
package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/middleware"
	"github.com/charlesng35/userapi/internal/runtime"
)

var (
	initOnce sync.Once
	entry    http.Handler
)

// Handler is invoked once per request. Configuration is loaded on the first
// call; backing services connect lazily and never fail the invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		entry = build()
	})
	entry.ServeHTTP(w, r)
}

func build() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := app.LoadConfig()
	if err != nil {
		zap.L().Error("load configuration", zap.Error(err))
		return configErrorHandler(err)
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		zap.L().Warn("configure logging", zap.Error(err))
	}

	return runtime.New(cfg, runtime.WithHealthMessage("Serverless function is running"))
}

func configErrorHandler(cause error) http.Handler {
	r := gin.New()
	r.Use(middleware.Errors(true), middleware.Recovery())
	r.NoRoute(func(c *gin.Context) {
		middleware.Abort(c, cause)
	})
	return r
}
