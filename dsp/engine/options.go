package engine

import (
	"io"
	"log/slog"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for plan rebuilds and resets.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventCapacity sets the per-port MIDI and trigger capacity.
func WithEventCapacity(capacity int) Option {
	return func(e *Engine) {
		if capacity > 0 {
			e.eventCapacity = capacity
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
