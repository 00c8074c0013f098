package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit sink; vcctl logs to stderr so stdout
// stays clean for links and JWTs.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
