package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// NewHandler returns a JSON handler writing to stdout.
// When opts is nil the level is taken from log.level.
func NewHandler(opts *slog.HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: ParseLevel(viper.GetString("log.level"))}
	}

	return slog.NewJSONHandler(os.Stdout, opts)
}

// ParseLevel maps debug, warn and error to slog levels. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
