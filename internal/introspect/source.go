// Package introspect exposes a hosted graph over HTTP and MCP for
// inspection. Nothing here mutates the graph; edits go through the garden
// service.
package introspect

import (
	"context"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/engine"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/internal/garden"
)

// Source is the read-only view of a hosted graph.
type Source interface {
	Snapshot() graph.Snapshot
	Order() ([]uuid.UUID, error)
	Path(from, to string) ([]uuid.UUID, bool, error)
	Stats() engine.Stats
	ListDevices() []garden.Device
}

// SnapshotStore persists named snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, name string, snap graph.Snapshot) error
	Load(ctx context.Context, name string) (graph.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

var _ Source = (*garden.Garden)(nil)

// OrderEntry is one step of the processing order.
type OrderEntry struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	TypeID string    `json:"type_id"`
}

// PathResult answers a signal path query.
type PathResult struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Found bool        `json:"found"`
	Path  []uuid.UUID `json:"path"`
}

// processingOrder resolves the order against a snapshot taken right after
// it. An edit landing between the two calls leaves names blank.
func processingOrder(src Source) ([]OrderEntry, error) {
	ids, err := src.Order()
	if err != nil {
		return nil, err
	}

	snap := src.Snapshot()
	out := make([]OrderEntry, len(ids))

	for i, id := range ids {
		out[i].ID = id
		if d, ok := snap.Node(id); ok {
			out[i].Name = d.Name
			out[i].TypeID = d.TypeID
		}
	}

	return out, nil
}

func signalPath(src Source, from, to string) (PathResult, error) {
	path, ok, err := src.Path(from, to)
	if err != nil {
		return PathResult{}, err
	}

	if path == nil {
		path = []uuid.UUID{}
	}

	return PathResult{From: from, To: to, Found: ok, Path: path}, nil
}
