package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig(cfg))
}

// buildMySQLDSN converts a mysql:// URL into the driver's native DSN format.
func buildMySQLDSN(cfg Config) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", ErrNotConfigured
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("mysql: parse url: %w", err)
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("mysql: database name missing from url")
	}

	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	mc := drv.NewConfig()
	mc.Net = "tcp"
	mc.Addr = host + ":" + port
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.UTC
	if u.User != nil {
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
	}

	params := map[string]string{"charset": "utf8mb4"}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		switch key {
		case "tls":
			mc.TLSConfig = values[0]
		default:
			params[key] = values[0]
		}
	}
	if cfg.Production && mc.TLSConfig == "" {
		mc.TLSConfig = "true"
	}
	mc.Params = params

	return mc.FormatDSN(), nil
}
