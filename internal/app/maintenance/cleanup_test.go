package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/userapi/internal/database/testutil"
	"github.com/charlesng35/userapi/internal/models"
)

func TestCleanupCacheEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

	entries := []models.CacheEntry{
		{Key: "expired", Value: []byte("1"), ExpiresAt: now.Add(-time.Hour)},
		{Key: "active", Value: []byte("2"), ExpiresAt: now.Add(time.Hour)},
		{Key: "forever", Value: []byte("3")},
	}
	require.NoError(t, db.Create(&entries).Error)

	removed, err := CleanupCacheEntries(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Order("key").Pluck("key", &keys).Error)
	require.Equal(t, []string{"active", "forever"}, keys)
}

func TestCleanupCacheEntriesRequiresDB(t *testing.T) {
	_, err := CleanupCacheEntries(context.Background(), nil, time.Now())
	require.Error(t, err)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}

	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "stats:requests",
		Value:     []byte("7"),
		ExpiresAt: clock.Now().Add(-time.Minute),
	}).Error)

	c := NewCleaner(db,
		WithNow(clock.Now),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	c := NewCleaner(db, WithCacheSchedule("@every 1h"))
	require.NoError(t, c.Start())
	<-c.Stop().Done()

	bad := NewCleaner(db, WithCacheSchedule("not a schedule"))
	require.Error(t, bad.Start())
}

func TestCleanerWithoutDatabaseIsNoop(t *testing.T) {
	c := NewCleaner(nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
	<-c.Stop().Done()
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
