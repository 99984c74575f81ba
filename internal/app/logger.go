package app

import (
	"strings"

	"github.com/charlesng35/userapi/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server settings, defaulting to info.
// Development environments use the console encoder.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(logger.Options{
		Level:       level,
		Development: cfg.Environment == EnvDevelopment,
	})
}
