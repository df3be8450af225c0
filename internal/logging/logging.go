package logging

import (
	"log/slog"
	"os"
)

// Init installs the default logger. LOG_LEVEL wins over fallback, which is
// used when the variable is unset or unrecognised.
func Init(fallback string) {
	level := ParseLevel(fallback, slog.LevelError)

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, level)
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch name {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}
