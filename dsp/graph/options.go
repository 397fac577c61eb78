package graph

import (
	"io"
	"log/slog"
)

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for control-plane events.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
