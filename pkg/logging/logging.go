// Package logging configures the process-wide slog default for splitledger
// binaries. Output goes to stderr through tint, colored and source-annotated,
// with the service name attached to every record so logs from the API server
// and future workers can be told apart when aggregated.
//
// Usage:
//
//	logging.Setup("splitledger")                            // level from LOG_LEVEL
//	logging.SetupWithLevel("splitledger", slog.LevelDebug)  // explicit override
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger for the named service at the level
// specified by LOG_LEVEL (default: INFO).
func Setup(service string) {
	SetupWithLevel(service, levelFromEnv())
}

// SetupWithLevel installs the default logger for the named service at the
// given level. Every record carries a "service" attribute.
func SetupWithLevel(service string, level slog.Level) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
	slog.SetDefault(slog.New(handler).With("service", service))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
