package app

import (
	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/database"
)

// PrimaryRedisConfig converts the Upstash settings into the cache package representation.
func (c CacheConfig) PrimaryRedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:            c.Upstash.URL,
		Token:          c.Upstash.Token,
		Prefix:         c.Prefix,
		DialTimeout:    c.Upstash.DialTimeout,
		CommandTimeout: c.Upstash.CommandTimeout,
		MaxRetries:     3,
	}
}

// SecondaryRedisConfig converts the REDIS_URL settings into the cache package representation.
func (c CacheConfig) SecondaryRedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:            c.Redis.URL,
		Prefix:         c.Prefix,
		DialTimeout:    c.Redis.DialTimeout,
		CommandTimeout: c.Redis.CommandTimeout,
	}
}

// StoreConfig converts the database settings into a database.Config.
func (c DatabaseConfig) StoreConfig(production bool) database.Config {
	return database.Config{
		URL:             c.URL,
		Production:      production,
		Debug:           c.Debug,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}
