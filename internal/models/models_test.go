package models

import (
	"testing"
	"time"
)

func TestTableNames(t *testing.T) {
	if (User{}).TableName() != "users" {
		t.Fatal("unexpected users table name")
	}
	if (CacheEntry{}).TableName() != "cache_entries" {
		t.Fatal("unexpected cache table name")
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		entry   CacheEntry
		expired bool
	}{
		{"no expiry", CacheEntry{}, false},
		{"future", CacheEntry{ExpiresAt: now.Add(time.Minute)}, false},
		{"past", CacheEntry{ExpiresAt: now.Add(-time.Second)}, true},
		{"exact", CacheEntry{ExpiresAt: now}, true},
	}

	for _, tc := range cases {
		if got := tc.entry.Expired(now); got != tc.expired {
			t.Fatalf("%s: expected expired=%v, got %v", tc.name, tc.expired, got)
		}
	}
}
