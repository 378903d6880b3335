package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes JSON at info level in production and readable text with
// source locations at debug level everywhere else.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})).
			With("service", "facewatch")
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: env == "development",
	}))
}
