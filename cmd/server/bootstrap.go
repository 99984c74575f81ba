package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/app/maintenance"
	"github.com/charlesng35/userapi/internal/runtime"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Manager *runtime.Manager
	Cleaner *maintenance.Cleaner
	Handler http.Handler
}

// bootstrapRuntime connects every configured backing service and builds the
// route table. Any connection failure is fatal in standalone mode.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var origins []string
	if cfg.Server.FrontendURL != "" {
		origins = append(origins, cfg.Server.FrontendURL)
	}
	stack.Manager = runtime.New(cfg,
		runtime.WithCORSOrigins(origins...),
		runtime.WithHealthMessage("Server is running"),
	)

	if err := stack.Manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect backing services: %w", err)
	}
	if stack.Manager.Degraded() {
		return nil, errors.New("build api router: degraded routes mounted")
	}

	if cfg.Services().Store {
		db, err := stack.Manager.Store(ctx)
		if err != nil {
			return nil, err
		}
		stack.Cleaner = maintenance.NewCleaner(db, maintenance.WithCacheSchedule(cfg.Cache.CleanupSchedule))
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Handler = stack.Manager.Handler()
	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases every connection.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Manager != nil {
		if err := s.Manager.Shutdown(ctx); err != nil {
			log.Warn("backing service shutdown", zap.Error(err))
		}
	}
}
