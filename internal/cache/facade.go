package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/userapi/pkg/logger"
	"github.com/charlesng35/userapi/pkg/metrics"
)

// Outcome is the typed result of a facade call.
type Outcome int

const (
	// OutcomeOK means the operation reached the backend and succeeded.
	OutcomeOK Outcome = iota
	// OutcomeMiss means the backend answered but holds no usable value for the key.
	OutcomeMiss
	// OutcomeUnavailable means no backend is bound or the backend call failed.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMiss:
		return "miss"
	default:
		return "unavailable"
	}
}

// Binder resolves the backend for a facade call.
type Binder func(ctx context.Context) (Backend, error)

// Static binds a facade to a fixed backend. A nil backend yields ErrNotConfigured.
func Static(backend Backend) Binder {
	return func(context.Context) (Backend, error) {
		if backend == nil {
			return nil, ErrNotConfigured
		}
		return backend, nil
	}
}

// Facade wraps a lazily bound Backend and never surfaces backend errors to callers.
// A nil *Facade behaves as a permanently unavailable cache.
type Facade struct {
	name string
	bind Binder
	log  *zap.Logger
}

// NewFacade returns a facade named after its tier (e.g. "primary", "secondary").
func NewFacade(name string, bind Binder) *Facade {
	if bind == nil {
		bind = Static(nil)
	}
	return &Facade{
		name: name,
		bind: bind,
		log:  logger.WithModule("cache").With(zap.String("tier", name)),
	}
}

// Name returns the tier name.
func (f *Facade) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Available reports whether a backend can currently be bound.
func (f *Facade) Available(ctx context.Context) bool {
	_, err := f.backend(ctx)
	return err == nil
}

// Configured reports false only when the binder has no backend settings at all.
func (f *Facade) Configured(ctx context.Context) bool {
	_, err := f.backend(ctx)
	return !errors.Is(err, ErrNotConfigured)
}

// Get decodes the JSON value stored at key into dest.
func (f *Facade) Get(ctx context.Context, key string, dest any) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("get", OutcomeUnavailable)
	}

	raw, found, err := b.Get(ctx, key)
	if err != nil {
		f.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return f.record("get", OutcomeUnavailable)
	}
	if !found {
		return f.record("get", OutcomeMiss)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		f.log.Warn("cache value decode failed", zap.String("key", key), zap.Error(err))
		return f.record("get", OutcomeMiss)
	}
	return f.record("get", OutcomeOK)
}

// Set stores the JSON encoding of value. A zero ttl means no expiry.
func (f *Facade) Set(ctx context.Context, key string, value any, ttl time.Duration) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("set", OutcomeUnavailable)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		f.log.Error("cache value encode failed", zap.String("key", key), zap.Error(err))
		return f.record("set", OutcomeUnavailable)
	}

	if err := b.Set(ctx, key, raw, ttl); err != nil {
		f.log.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return f.record("set", OutcomeUnavailable)
	}
	return f.record("set", OutcomeOK)
}

func (f *Facade) Delete(ctx context.Context, key string) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("delete", OutcomeUnavailable)
	}
	if err := b.Delete(ctx, key); err != nil {
		f.log.Error("cache delete failed", zap.String("key", key), zap.Error(err))
		return f.record("delete", OutcomeUnavailable)
	}
	return f.record("delete", OutcomeOK)
}

// Exists reports false both for absent keys and for an unavailable backend.
func (f *Facade) Exists(ctx context.Context, key string) bool {
	b, err := f.backend(ctx)
	if err != nil {
		f.record("exists", OutcomeUnavailable)
		return false
	}
	ok, err := b.Exists(ctx, key)
	if err != nil {
		f.log.Warn("cache exists failed", zap.String("key", key), zap.Error(err))
		f.record("exists", OutcomeUnavailable)
		return false
	}
	if !ok {
		f.record("exists", OutcomeMiss)
		return false
	}
	f.record("exists", OutcomeOK)
	return true
}

// Increment adds one to the counter at key and returns the new value, or 0 on failure.
func (f *Facade) Increment(ctx context.Context, key string) (int64, Outcome) {
	b, err := f.backend(ctx)
	if err != nil {
		return 0, f.record("incr", OutcomeUnavailable)
	}
	n, err := b.Incr(ctx, key)
	if err != nil {
		f.log.Error("cache increment failed", zap.String("key", key), zap.Error(err))
		return 0, f.record("incr", OutcomeUnavailable)
	}
	return n, f.record("incr", OutcomeOK)
}

// Expire sets the ttl of an existing key; OutcomeMiss when the key does not exist.
func (f *Facade) Expire(ctx context.Context, key string, ttl time.Duration) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("expire", OutcomeUnavailable)
	}
	ok, err := b.Expire(ctx, key, ttl)
	if err != nil {
		f.log.Error("cache expire failed", zap.String("key", key), zap.Error(err))
		return f.record("expire", OutcomeUnavailable)
	}
	if !ok {
		return f.record("expire", OutcomeMiss)
	}
	return f.record("expire", OutcomeOK)
}

func (f *Facade) FlushAll(ctx context.Context) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("flush", OutcomeUnavailable)
	}
	if err := b.Flush(ctx); err != nil {
		f.log.Error("cache flush failed", zap.Error(err))
		return f.record("flush", OutcomeUnavailable)
	}
	return f.record("flush", OutcomeOK)
}

func (f *Facade) Ping(ctx context.Context) Outcome {
	b, err := f.backend(ctx)
	if err != nil {
		return f.record("ping", OutcomeUnavailable)
	}
	if err := b.Ping(ctx); err != nil {
		f.log.Warn("cache ping failed", zap.Error(err))
		return f.record("ping", OutcomeUnavailable)
	}
	return f.record("ping", OutcomeOK)
}

func (f *Facade) backend(ctx context.Context) (Backend, error) {
	if f == nil {
		return nil, ErrNotConfigured
	}
	b, err := f.bind(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			f.log.Debug("cache backend unavailable", zap.Error(err))
		}
		return nil, err
	}
	if b == nil {
		return nil, ErrNotConfigured
	}
	return b, nil
}

func (f *Facade) record(op string, outcome Outcome) Outcome {
	if f != nil {
		metrics.CacheOperations.WithLabelValues(f.name, op, outcome.String()).Inc()
	}
	return outcome
}
