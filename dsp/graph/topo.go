package graph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Connect adds an edge from srcPort on src to dstPort on dst with unity gain.
// The edge is rolled back and ErrCycleDetected returned if it would close a
// cycle; a failed call leaves the graph unchanged.
//
// Every call runs a full topological sort, so the cost is O(V+E).
func (g *Graph) Connect(src uuid.UUID, srcPort string, dst uuid.UUID, dstPort string) (EdgeIndex, error) {
	return g.ConnectEdge(src, dst, Edge{SourcePort: srcPort, DestPort: dstPort, Gain: 1, Active: true})
}

// ConnectEdge is Connect with explicit gain and active flag.
func (g *Graph) ConnectEdge(src, dst uuid.UUID, e Edge) (EdgeIndex, error) {
	si, ok := g.ids[src]
	if !ok {
		return 0, fmt.Errorf("%w: source %s", ErrNodeNotFound, src)
	}

	di, ok := g.ids[dst]
	if !ok {
		return 0, fmt.Errorf("%w: destination %s", ErrNodeNotFound, dst)
	}

	sd := g.nodes[si].node.Descriptor()
	dd := g.nodes[di].node.Descriptor()

	op := sd.Output(e.SourcePort)
	if op < 0 {
		return 0, fmt.Errorf("%w: %q has no output %q", ErrPortNotFound, sd.Name, e.SourcePort)
	}

	ip := dd.Input(e.DestPort)
	if ip < 0 {
		return 0, fmt.Errorf("%w: %q has no input %q", ErrPortNotFound, dd.Name, e.DestPort)
	}

	if st, dt := sd.Outputs[op].SignalType, dd.Inputs[ip].SignalType; st != dt {
		return 0, fmt.Errorf("%w: %s.%s is %s, %s.%s is %s",
			ErrTypeMismatch, sd.Name, e.SourcePort, st, dd.Name, e.DestPort, dt)
	}

	idx := g.addEdge(si, di, e)

	if _, acyclic := g.topoSort(); !acyclic {
		g.unwindEdge(idx)
		return 0, fmt.Errorf("%w: %s.%s -> %s.%s", ErrCycleDetected, sd.Name, e.SourcePort, dd.Name, e.DestPort)
	}

	g.invalidate()
	g.logger.Debug("connected",
		"src", sd.Name, "src_port", e.SourcePort, "dst", dd.Name, "dst_port", e.DestPort)

	return idx, nil
}

// Disconnect removes the first edge from src to dst. It reports whether an
// edge was removed.
func (g *Graph) Disconnect(src, dst uuid.UUID) bool {
	si, ok := g.ids[src]
	if !ok {
		return false
	}

	di, ok := g.ids[dst]
	if !ok {
		return false
	}

	e, ok := g.findEdge(si, di)
	if !ok {
		return false
	}

	g.dropEdge(e)
	g.invalidate()

	return true
}

// ProcessingOrder returns the node indices in an order consistent with every
// edge direction. Ties are broken by ascending index. The result is cached
// until the next structural mutation; callers must not modify it.
func (g *Graph) ProcessingOrder() ([]NodeIndex, error) {
	if g.orderValid {
		return g.order, nil
	}

	order, ok := g.topoSort()
	if !ok {
		return nil, ErrCycleDetected
	}

	g.order = order
	g.orderValid = true

	return order, nil
}

// topoSort runs Kahn's algorithm over the live nodes. It reports false if
// the edges contain a cycle.
func (g *Graph) topoSort() ([]NodeIndex, bool) {
	indegree := make([]int, len(g.nodes))
	ready := make([]NodeIndex, 0, g.nodeCount)

	for i, slot := range g.nodes {
		if slot.node == nil {
			continue
		}

		indegree[i] = len(slot.incoming)
		if indegree[i] == 0 {
			ready = append(ready, NodeIndex(i))
		}
	}

	order := make([]NodeIndex, 0, g.nodeCount)

	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]

		order = append(order, idx)

		for _, e := range g.nodes[idx].outgoing {
			dst := g.edges[e].dst

			indegree[dst]--
			if indegree[dst] == 0 {
				pos, _ := slices.BinarySearch(ready, dst)
				ready = slices.Insert(ready, pos, dst)
			}
		}
	}

	return order, len(order) == g.nodeCount
}
