package observability

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger and installs it as the slog default:
// JSON by default, a colored human-readable handler when LOG_FORMAT=text.
func NewLogger(cfg *config.Config) *slog.Logger {
	if !strings.EqualFold(cfg.LogFormat, "text") {
		return sharedobs.NewLogger(cfg.LogLevel, "json")
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      ParseLevel(cfg.LogLevel),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
