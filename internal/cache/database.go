package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/userapi/internal/database"
	"github.com/charlesng35/userapi/internal/models"
)

const databaseBackendName = "database"

var keyColumn = clause.Column{Name: "key"}

// DatabaseBackend implements Backend using the cache_entries table of the relational store.
// The store connection is owned by the caller; Close does not release it.
type DatabaseBackend struct {
	db  *gorm.DB
	now func() time.Time

	// beforeInsert runs between a counter miss and its insert; tests use it
	// to create the row as a concurrent writer would.
	beforeInsert func(tx *gorm.DB, key string)
}

// NewDatabaseBackend constructs a database-backed Backend.
func NewDatabaseBackend(db *gorm.DB) *DatabaseBackend {
	if db == nil {
		return nil
	}
	return &DatabaseBackend{db: db, now: time.Now}
}

func (s *DatabaseBackend) Name() string { return databaseBackendName }

// Get retrieves a value by key, respecting expiry.
func (s *DatabaseBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, found, err := s.load(s.db.WithContext(ctx), key)
	if err != nil || !found {
		return nil, false, err
	}
	return entry.Value, true, nil
}

// Set upserts the value for a given key with expiry.
func (s *DatabaseBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if value == nil {
		value = []byte{}
	}
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: s.expiry(ttl),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{keyColumn},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
}

// Delete removes keys from the store.
func (s *DatabaseBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = key
	}
	return s.db.WithContext(ctx).
		Where(clause.IN{Column: keyColumn, Values: values}).
		Delete(&models.CacheEntry{}).Error
}

func (s *DatabaseBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := s.load(s.db.WithContext(ctx), key)
	return found, err
}

// Incr atomically increments the integer stored at key. A missing or expired
// key starts from zero; an existing expiry is preserved. When another writer
// creates the key between the lookup and the insert, the increment applies to
// that row instead.
func (s *DatabaseBackend) Incr(ctx context.Context, key string) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, found, err := lockEntry(tx, key)
		if err != nil {
			return err
		}
		if !found {
			if s.beforeInsert != nil {
				s.beforeInsert(tx, key)
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{keyColumn},
				DoNothing: true,
			}).Create(&models.CacheEntry{Key: key, Value: []byte("1")})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				count = 1
				return nil
			}
			if entry, found, err = lockEntry(tx, key); err != nil {
				return err
			}
			if !found {
				return errors.New("cache: counter row vanished during increment")
			}
		}

		if entry.Expired(s.now()) {
			count = 1
			entry.ExpiresAt = time.Time{}
		} else {
			current, err := strconv.ParseInt(string(entry.Value), 10, 64)
			if err != nil {
				return errors.New("cache: value is not an integer")
			}
			count = current + 1
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))

		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func lockEntry(tx *gorm.DB, key string) (models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Eq{Column: keyColumn, Value: key}).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entry, false, nil
	}
	return entry, err == nil, err
}

// Expire sets a new time-to-live on an existing key. It reports false when the key is absent.
func (s *DatabaseBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	db := s.db.WithContext(ctx)
	if _, found, err := s.load(db, key); err != nil || !found {
		return false, err
	}

	if ttl <= 0 {
		return true, s.Delete(ctx, key)
	}

	res := db.Model(&models.CacheEntry{}).
		Where(clause.Eq{Column: keyColumn, Value: key}).
		Update("expires_at", s.expiry(ttl))
	return res.RowsAffected > 0, res.Error
}

// Flush removes every cache entry.
func (s *DatabaseBackend) Flush(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.CacheEntry{}).Error
}

func (s *DatabaseBackend) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}

func (s *DatabaseBackend) Close() error { return nil }

func (s *DatabaseBackend) load(db *gorm.DB, key string) (models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	err := db.Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, err
	}

	if entry.Expired(s.now()) {
		_ = db.Where(clause.Eq{Column: keyColumn, Value: key}).Delete(&models.CacheEntry{}).Error
		return entry, false, nil
	}
	return entry, true, nil
}

func (s *DatabaseBackend) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
