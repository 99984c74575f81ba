package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultCommandTimeout = 3 * time.Second
	upstashDefaultPort    = "6379"
)

// RedisConfig captures the connection parameters of one Redis tier.
type RedisConfig struct {
	URL   string
	Token string // Overrides the URL password when set (Upstash REST token)

	Prefix         string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	MaxRetries     int
}

// Configured reports whether a URL was supplied.
func (c RedisConfig) Configured() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Options converts the config into go-redis client options.
// https:// URLs (Upstash REST endpoints) are mapped to a TLS connection on the
// same host using the token as password for the "default" user.
func (c RedisConfig) Options() (*redis.Options, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return nil, ErrNotConfigured
	}

	var (
		opts *redis.Options
		err  error
	)

	switch {
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		opts, err = upstashOptions(raw, c.Token)
	default:
		opts, err = redis.ParseURL(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	if c.Token != "" {
		opts.Password = c.Token
		if opts.Username == "" {
			opts.Username = "default"
		}
	}

	opts.DialTimeout = durationOr(c.DialTimeout, defaultDialTimeout)
	command := durationOr(c.CommandTimeout, defaultCommandTimeout)
	opts.ReadTimeout = command
	opts.WriteTimeout = command
	opts.ContextTimeoutEnabled = true
	if c.MaxRetries != 0 {
		opts.MaxRetries = c.MaxRetries
	}

	return opts, nil
}

func upstashOptions(raw, token string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	if host == "" {
		return nil, errors.New("missing host")
	}

	port := upstashDefaultPort
	if p := u.Port(); p != "" && p != "443" && p != "80" {
		port = p
	}

	return &redis.Options{
		Addr:      net.JoinHostPort(host, port),
		Username:  "default",
		Password:  token,
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	}, nil
}

// RedisBackend implements Backend on top of go-redis.
type RedisBackend struct {
	name   string
	client *redis.Client
	prefix string
}

// OpenRedis creates a client for the supplied config and verifies it with PING.
func OpenRedis(ctx context.Context, name string, cfg RedisConfig) (*RedisBackend, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	backend := NewRedisBackend(name, redis.NewClient(opts), cfg.Prefix)
	if err := backend.Ping(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", name, err)
	}
	return backend, nil
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(name string, client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{name: name, client: client, prefix: prefix}
}

// Name identifies the backend in logs and metrics.
func (b *RedisBackend) Name() string { return b.name }

// Client exposes the underlying go-redis client.
func (b *RedisBackend) Client() *redis.Client { return b.client }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return b.client.Set(ctx, b.key(key), value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = b.key(key)
	}
	return b.client.Del(ctx, prefixed...).Err()
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) Incr(ctx context.Context, key string) (int64, error) {
	return b.client.Incr(ctx, b.key(key)).Result()
}

func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return b.client.Expire(ctx, b.key(key), ttl).Result()
}

// Flush empties the selected database.
func (b *RedisBackend) Flush(ctx context.Context) error {
	return b.client.FlushDB(ctx).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	err := b.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func (b *RedisBackend) key(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + key
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
