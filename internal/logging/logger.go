// Package logging provides the shared slog constructors for the service.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a configured application logger writing to Stderr, keeping
// Stdout free for command output. The "error" key is standardized to "err".
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a no-op logger. Library types default to this so logging
// is strictly opt-in.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
