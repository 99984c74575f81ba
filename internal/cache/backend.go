package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by binders when no backend is configured for a tier.
var ErrNotConfigured = errors.New("cache: backend not configured")

// ErrBackendClosed is returned when a backend is used after Close.
var ErrBackendClosed = errors.New("cache: backend closed")

// Backend is a key/value store holding serialized values.
// Get reports a missing or expired key with found == false and a nil error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
