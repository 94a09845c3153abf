package logger

import (
	"log/slog"
	"os"

	"github.com/fleetline/realtime/config"
)

// New builds the process logger from config and installs it as the slog
// default so library code without an injected logger still lands in the same
// stream.
func New(cfg config.LoggerConfig, service, env string) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.Int("pid", os.Getpid()),
	)
	slog.SetDefault(log)
	return log
}
