package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

// InsertBetween splices n into the existing edge before→after. The first
// segment keeps the original source port and gain, the second keeps the
// original destination port; both keep the active flag. n is attached by its
// first input and output carrying the edge's signal type. On error the graph
// is unchanged.
func (g *Graph) InsertBetween(n node.Node, before, after uuid.UUID) (uuid.UUID, error) {
	bi, ok := g.ids[before]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNodeNotFound, before)
	}

	ai, ok := g.ids[after]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNodeNotFound, after)
	}

	e, ok := g.findEdge(bi, ai)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, before, after)
	}

	nd := n.Descriptor()
	if _, dup := g.ids[nd.ID]; dup {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateNode, nd.ID)
	}

	orig := g.edges[e].edge
	kind := g.edgeType(e)

	inPort, err := splicePort(nd.Name, nd.Inputs, kind, "input")
	if err != nil {
		return uuid.Nil, err
	}

	outPort, err := splicePort(nd.Name, nd.Outputs, kind, "output")
	if err != nil {
		return uuid.Nil, err
	}

	// The new node has no other edges, so splicing it in cannot form a cycle.
	g.dropEdge(e)
	ni := g.AddNode(n)
	g.addEdge(bi, ni, Edge{SourcePort: orig.SourcePort, DestPort: inPort, Gain: orig.Gain, Active: orig.Active})
	g.addEdge(ni, ai, Edge{SourcePort: outPort, DestPort: orig.DestPort, Gain: 1, Active: orig.Active})
	g.invalidate()

	return nd.ID, nil
}

// edgeType resolves the signal type an edge carries from its endpoint ports.
// Edges re-attached by ReplaceNode may name ports the node lacks; those
// default to audio.
func (g *Graph) edgeType(e EdgeIndex) signal.Type {
	slot := g.edges[e]

	sd := g.nodes[slot.src].node.Descriptor()
	if i := sd.Output(slot.edge.SourcePort); i >= 0 {
		return sd.Outputs[i].SignalType
	}

	dd := g.nodes[slot.dst].node.Descriptor()
	if i := dd.Input(slot.edge.DestPort); i >= 0 {
		return dd.Inputs[i].SignalType
	}

	return signal.Audio
}

// splicePort picks the first port of the wanted type, falling back to a port
// with the conventional name.
func splicePort(owner string, ports []node.Port, want signal.Type, fallback string) (string, error) {
	for _, p := range ports {
		if p.SignalType == want {
			return p.Name, nil
		}
	}

	for _, p := range ports {
		if p.Name == fallback {
			return "", fmt.Errorf("%w: %s.%s is %s, edge carries %s",
				ErrTypeMismatch, owner, p.Name, p.SignalType, want)
		}
	}

	return "", fmt.Errorf("%w: %q has no %s port of type %s", ErrPortNotFound, owner, fallback, want)
}

// BypassNode removes the node and connects each upstream source directly to
// each downstream destination. A node with k incoming and m outgoing edges
// yields k*m new edges whose gain is the product of the pair's gains and
// which are active only if both were.
func (g *Graph) BypassNode(id uuid.UUID) error {
	idx, ok := g.ids[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	incoming := g.IncomingEdges(idx)
	outgoing := g.OutgoingEdges(idx)

	g.removeAt(idx)

	for _, in := range incoming {
		for _, out := range outgoing {
			g.addEdge(in.Peer, out.Peer, Edge{
				SourcePort: in.Edge.SourcePort,
				DestPort:   out.Edge.DestPort,
				Gain:       in.Edge.Gain * out.Edge.Gain,
				Active:     in.Edge.Active && out.Edge.Active,
			})
		}
	}

	g.invalidate()
	g.logger.Debug("node bypassed", "id", id, "edges", len(incoming)*len(outgoing))

	return nil
}

// ReplaceNode swaps the node registered under oldID for n. Every incident
// edge is re-attached to n unchanged and oldID is retired.
func (g *Graph) ReplaceNode(oldID uuid.UUID, n node.Node) error {
	idx, ok := g.ids[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, oldID)
	}

	newID := n.Descriptor().ID
	if newID != oldID {
		if _, dup := g.ids[newID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, newID)
		}
	}

	incoming := g.IncomingEdges(idx)
	outgoing := g.OutgoingEdges(idx)

	g.removeAt(idx)
	ni := g.AddNode(n)

	for _, in := range incoming {
		g.addEdge(in.Peer, ni, in.Edge)
	}

	for _, out := range outgoing {
		g.addEdge(ni, out.Peer, out.Edge)
	}

	g.invalidate()
	g.logger.Debug("node replaced", "old", oldID, "new", newID, "index", ni)

	return nil
}

// SetEdgeGain changes the gain of the first edge src→dst. Gain is not
// structural, so the cached order survives.
func (g *Graph) SetEdgeGain(src, dst uuid.UUID, gain float64) error {
	e, err := g.lookupEdge(src, dst)
	if err != nil {
		return err
	}

	g.edges[e].edge.Gain = gain
	g.version++

	return nil
}

// SetEdgeActive toggles the first edge src→dst without touching the order.
func (g *Graph) SetEdgeActive(src, dst uuid.UUID, active bool) error {
	e, err := g.lookupEdge(src, dst)
	if err != nil {
		return err
	}

	g.edges[e].edge.Active = active
	g.version++

	return nil
}

func (g *Graph) lookupEdge(src, dst uuid.UUID) (EdgeIndex, error) {
	si, ok := g.ids[src]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, src)
	}

	di, ok := g.ids[dst]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, dst)
	}

	e, ok := g.findEdge(si, di)
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, src, dst)
	}

	return e, nil
}
