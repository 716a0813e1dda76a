package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the root JSON logger for a binary.
func NewLogger(c *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", c.ServiceName).
		Logger()
}
