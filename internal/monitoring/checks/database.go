package checks

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/userapi/internal/monitoring"
)

const defaultTimeout = 2 * time.Second

// Pinger pings a backing service.
type Pinger func(ctx context.Context) error

// ErrNotConfigured marks a service that has no connection settings.
var ErrNotConfigured = errors.New("not configured")

// Service returns a check that calls ping with a bounded timeout. Pings that
// fail with an error matching ErrNotConfigured report StatusSkipped.
func Service(name string, ping Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.CheckResult {
		start := time.Now()
		if ping == nil {
			return monitoring.CheckResult{Status: monitoring.StatusSkipped, Duration: time.Since(start)}
		}

		checkCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultTimeout))
		defer cancel()

		err := ping(checkCtx)
		if errors.Is(err, ErrNotConfigured) {
			return monitoring.CheckResult{Status: monitoring.StatusSkipped, Duration: time.Since(start)}
		}
		return monitoring.ResultFromError(err, time.Since(start))
	})
}

// Database returns the mandatory relational store check.
func Database(ping Pinger, timeout time.Duration) monitoring.Check {
	return Service("database", ping, timeout).Require()
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
