package checks

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/monitoring"
)

var errCachePing = errors.New("cache ping failed")

// Cache returns an optional check for a cache facade. An unconfigured tier
// reports StatusSkipped.
func Cache(facade *cache.Facade, timeout time.Duration) monitoring.Check {
	return Service("cache:"+facade.Name(), func(ctx context.Context) error {
		if !facade.Configured(ctx) {
			return ErrNotConfigured
		}
		if facade.Ping(ctx) != cache.OutcomeOK {
			return errCachePing
		}
		return nil
	}, timeout)
}
