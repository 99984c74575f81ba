package runtime

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"

	"github.com/charlesng35/userapi/internal/app"
	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/database"
)

// Dialers open each backing service. Fields left nil use the defaults.
type Dialers struct {
	Store          func(ctx context.Context, cfg *app.Config) (*gorm.DB, error)
	PrimaryCache   func(ctx context.Context, cfg *app.Config) (cache.Backend, error)
	SecondaryCache func(ctx context.Context, cfg *app.Config) (cache.Backend, error)
	DocumentStore  func(ctx context.Context, cfg *app.Config) (*mongo.Client, error)
}

// DefaultDialers returns the production dialers.
func DefaultDialers() Dialers {
	return Dialers{
		Store:          DialStore,
		PrimaryCache:   DialPrimaryCache,
		SecondaryCache: DialSecondaryCache,
		DocumentStore:  DialDocumentStore,
	}
}

func (d Dialers) withDefaults() Dialers {
	defaults := DefaultDialers()
	if d.Store == nil {
		d.Store = defaults.Store
	}
	if d.PrimaryCache == nil {
		d.PrimaryCache = defaults.PrimaryCache
	}
	if d.SecondaryCache == nil {
		d.SecondaryCache = defaults.SecondaryCache
	}
	if d.DocumentStore == nil {
		d.DocumentStore = defaults.DocumentStore
	}
	return d
}

// DialStore opens the relational store, verifies it and applies migrations.
// Sample users are seeded when database.seed is enabled.
func DialStore(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.StoreConfig(cfg.IsProduction()))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	setup := func() error {
		if err := database.Ping(ctx, db); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if cfg.Database.Seed {
			return database.AutoMigrateAndSeed(db.WithContext(ctx))
		}
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if err := setup(); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// DialPrimaryCache connects to the Upstash Redis endpoint.
func DialPrimaryCache(ctx context.Context, cfg *app.Config) (cache.Backend, error) {
	return openRedis(ctx, "upstash", cfg.Cache.PrimaryRedisConfig())
}

// DialSecondaryCache connects to REDIS_URL.
func DialSecondaryCache(ctx context.Context, cfg *app.Config) (cache.Backend, error) {
	return openRedis(ctx, "redis", cfg.Cache.SecondaryRedisConfig())
}

func openRedis(ctx context.Context, name string, cfg cache.RedisConfig) (cache.Backend, error) {
	backend, err := cache.OpenRedis(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// DialDocumentStore connects to MONGODB_URI and pings the primary.
func DialDocumentStore(ctx context.Context, cfg *app.Config) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.Database.MongoDBURI)
	if timeout := cfg.Database.ConnectTimeout; timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}
