package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/userapi/pkg/metrics"
)

// ErrShutdown is returned by accessors after Shutdown.
var ErrShutdown = errors.New("runtime: manager shut down")

// slot holds one lazily dialled connection. Concurrent callers share a single
// dial; a successful value is kept for the process lifetime.
type slot[T any] struct {
	name    string
	timeout time.Duration
	dial    func(ctx context.Context) (T, error)
	close   func(T) error
	log     *zap.Logger

	value  atomic.Pointer[T]
	closed atomic.Bool
	group  singleflight.Group
}

func newSlot[T any](name string, timeout time.Duration, dial func(context.Context) (T, error), closeFn func(T) error, log *zap.Logger) *slot[T] {
	return &slot[T]{
		name:    name,
		timeout: timeout,
		dial:    dial,
		close:   closeFn,
		log:     log.With(zap.String("service", name)),
	}
}

// Load returns the connected value without dialling.
func (s *slot[T]) Load() (T, bool) {
	if v := s.value.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// Ensure returns the connected value, dialling once if the slot is empty.
// The dial is detached from ctx cancellation and bounded by the slot timeout;
// ctx only bounds how long this caller waits.
func (s *slot[T]) Ensure(ctx context.Context) (T, error) {
	var zero T
	if s.closed.Load() {
		return zero, ErrShutdown
	}
	if v, ok := s.Load(); ok {
		return v, nil
	}

	ch := s.group.DoChan(s.name, func() (any, error) {
		if v, ok := s.Load(); ok {
			return v, nil
		}
		return s.connect(ctx)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (s *slot[T]) connect(ctx context.Context) (T, error) {
	var zero T
	dialCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := s.dial(dialCtx)
	if err != nil {
		metrics.ConnectionAttempts.WithLabelValues(s.name, "failure").Inc()
		s.log.Warn("connection attempt failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return zero, err
	}

	if s.closed.Load() {
		if s.close != nil {
			_ = s.close(v)
		}
		return zero, ErrShutdown
	}
	s.value.Store(&v)
	metrics.ConnectionAttempts.WithLabelValues(s.name, "success").Inc()
	s.log.Info("connected", zap.Duration("elapsed", time.Since(start)))
	return v, nil
}

// Close releases the connection once. Later Ensure calls fail with ErrShutdown.
func (s *slot[T]) Close() error {
	s.closed.Store(true)
	v := s.value.Swap(nil)
	if v == nil || s.close == nil {
		return nil
	}
	return s.close(*v)
}
