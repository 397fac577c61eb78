package graph

import (
	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/node"
)

// EdgeSnapshot is the serializable form of an edge.
type EdgeSnapshot struct {
	SourceID   uuid.UUID `json:"source_id"`
	SourcePort string    `json:"source_port"`
	DestID     uuid.UUID `json:"dest_id"`
	DestPort   string    `json:"dest_port"`
	Gain       float64   `json:"gain"`
	Active     bool      `json:"active"`
}

// Snapshot is a read-only projection of a graph for inspection and
// persistence. It shares nothing with the graph it was taken from.
type Snapshot struct {
	Nodes []node.Descriptor `json:"nodes"`
	Edges []EdgeSnapshot    `json:"edges"`
}

// Snapshot copies the live nodes in index order and the live edges in
// creation order. Control plane only.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]node.Descriptor, 0, g.nodeCount),
		Edges: make([]EdgeSnapshot, 0, g.edgeCount),
	}

	for _, slot := range g.nodes {
		if slot.node == nil {
			continue
		}

		d := *slot.node.Descriptor()
		d.Inputs = append([]node.Port{}, d.Inputs...)
		d.Outputs = append([]node.Port{}, d.Outputs...)
		snap.Nodes = append(snap.Nodes, d)
	}

	for _, slot := range g.edges {
		if !slot.live {
			continue
		}

		snap.Edges = append(snap.Edges, EdgeSnapshot{
			SourceID:   g.nodes[slot.src].node.Descriptor().ID,
			SourcePort: slot.edge.SourcePort,
			DestID:     g.nodes[slot.dst].node.Descriptor().ID,
			DestPort:   slot.edge.DestPort,
			Gain:       slot.edge.Gain,
			Active:     slot.edge.Active,
		})
	}

	return snap
}

// Node returns the descriptor with the given id.
func (s Snapshot) Node(id uuid.UUID) (node.Descriptor, bool) {
	for _, d := range s.Nodes {
		if d.ID == id {
			return d, true
		}
	}

	return node.Descriptor{}, false
}
