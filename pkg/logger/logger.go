package logger

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Setup installs the process-wide slog handler.
func Setup(level string, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns a logger tagged with the owning subsystem.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// WithSubmission tags a logger with the submission a stage is working on.
func WithSubmission(log *slog.Logger, id uuid.UUID) *slog.Logger {
	return log.With("submission_id", id.String())
}

func parseLevel(level string) slog.Level {
	switch level {
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
