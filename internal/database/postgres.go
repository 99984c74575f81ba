package database

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormConfig(cfg))
}

// buildPostgresDSN returns the configured URL, requiring TLS in production
// unless the URL already chooses an sslmode.
func buildPostgresDSN(cfg Config) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", ErrNotConfigured
	}

	if !strings.Contains(raw, "://") {
		if cfg.Production && !strings.Contains(raw, "sslmode=") {
			raw += " sslmode=require"
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("postgres: parse url: %w", err)
	}

	if cfg.Production {
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", "require")
			u.RawQuery = q.Encode()
		}
	}

	return u.String(), nil
}
