package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config represents the runtime configuration for the user API.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	Environment     string          `mapstructure:"environment"`
	FrontendURL     string          `mapstructure:"frontend_url"`
	BodyLimit       int64           `mapstructure:"body_limit"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles /api requests per client IP. Zero Requests disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes the relational store and the optional document store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MongoDBURI      string        `mapstructure:"mongodb_uri"`
	Seed            bool          `mapstructure:"seed"`
	Debug           bool          `mapstructure:"debug"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig describes the primary (Upstash) and secondary (Redis) cache tiers.
type CacheConfig struct {
	Prefix string `mapstructure:"prefix"`
	// DatabaseFallback serves the secondary tier from the relational store when no Redis URL is set.
	DatabaseFallback bool               `mapstructure:"database_fallback"`
	Upstash          UpstashCacheConfig `mapstructure:"upstash"`
	Redis            RedisCacheConfig   `mapstructure:"redis"`
	// CleanupSchedule is the cron spec used to purge expired database cache entries.
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

// UpstashCacheConfig holds the primary cache connection options.
type UpstashCacheConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// RedisCacheConfig holds the secondary cache connection options.
type RedisCacheConfig struct {
	URL            string        `mapstructure:"url"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles readiness endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Services reports which backing services are configured.
type Services struct {
	Store          bool
	DocumentStore  bool
	PrimaryCache   bool
	SecondaryCache bool
}

// Any reports whether at least one backing service is configured.
func (s Services) Any() bool {
	return s.Store || s.DocumentStore || s.PrimaryCache || s.SecondaryCache
}

// envBindings maps configuration keys to the plain environment variables that populate them.
// The first non-empty variable wins. Every key is also reachable as USERAPI_<KEY>.
var envBindings = map[string][]string{
	"database.url":         {"POSTGRES_URL", "DATABASE_URL"},
	"database.mongodb_uri": {"MONGODB_URI"},
	"cache.redis.url":      {"REDIS_URL"},
	"cache.upstash.url":    {"UPSTASH_REDIS_REST_URL"},
	"cache.upstash.token":  {"UPSTASH_REDIS_REST_TOKEN"},
	"server.environment":   {"NODE_ENV", "APP_ENV"},
	"server.frontend_url":  {"FRONTEND_URL"},
	"server.port":          {"PORT"},
	"server.log_level":     {"LOG_LEVEL"},
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("USERAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	config.normalise()
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.body_limit", 10<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests", 0)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.url", "")
	v.SetDefault("database.mongodb_uri", "")
	v.SetDefault("database.seed", false)
	v.SetDefault("database.debug", false)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("cache.prefix", "")
	v.SetDefault("cache.database_fallback", true)
	v.SetDefault("cache.cleanup_schedule", "@hourly")
	v.SetDefault("cache.upstash.url", "")
	v.SetDefault("cache.upstash.token", "")
	v.SetDefault("cache.upstash.dial_timeout", "10s")
	v.SetDefault("cache.upstash.command_timeout", "5s")
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.command_timeout", "3s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalise() {
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	if c.Server.Environment == "" {
		c.Server.Environment = EnvDevelopment
	}
	c.Server.FrontendURL = strings.TrimRight(strings.TrimSpace(c.Server.FrontendURL), "/")
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	c.Database.MongoDBURI = strings.TrimSpace(c.Database.MongoDBURI)
	c.Cache.Upstash.URL = strings.TrimSpace(c.Cache.Upstash.URL)
	c.Cache.Upstash.Token = strings.TrimSpace(c.Cache.Upstash.Token)
	c.Cache.Redis.URL = strings.TrimSpace(c.Cache.Redis.URL)
}

// IsProduction reports whether the process runs with NODE_ENV=production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Server.Environment == EnvProduction
}

// Services reports which backing services have enough configuration to attempt a connection.
// The primary cache requires both the URL and the token.
func (c *Config) Services() Services {
	if c == nil {
		return Services{}
	}
	return Services{
		Store:          c.Database.URL != "",
		DocumentStore:  c.Database.MongoDBURI != "",
		PrimaryCache:   c.Cache.Upstash.URL != "" && c.Cache.Upstash.Token != "",
		SecondaryCache: c.Cache.Redis.URL != "",
	}
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	port := s.Port
	if port <= 0 {
		port = 5000
	}
	return ":" + strconv.Itoa(port)
}
