package graph

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Upstream returns every node from which id is reachable, nearest first.
func (g *Graph) Upstream(id uuid.UUID) []uuid.UUID {
	return g.closure(id, func(s edgeSlot) NodeIndex { return s.src }, func(n nodeSlot) []EdgeIndex { return n.incoming })
}

// Downstream returns every node reachable from id, nearest first.
func (g *Graph) Downstream(id uuid.UUID) []uuid.UUID {
	return g.closure(id, func(s edgeSlot) NodeIndex { return s.dst }, func(n nodeSlot) []EdgeIndex { return n.outgoing })
}

func (g *Graph) closure(id uuid.UUID, peer func(edgeSlot) NodeIndex, adj func(nodeSlot) []EdgeIndex) []uuid.UUID {
	start, ok := g.ids[id]
	if !ok {
		return nil
	}

	seen := make([]bool, len(g.nodes))
	seen[start] = true
	queue := []NodeIndex{start}

	var out []uuid.UUID

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]

		for _, e := range adj(g.nodes[idx]) {
			next := peer(g.edges[e])
			if seen[next] {
				continue
			}

			seen[next] = true
			queue = append(queue, next)
			out = append(out, g.nodes[next].node.Descriptor().ID)
		}
	}

	return out
}

// SignalPath returns a chain of node IDs from src to dst, both included, found
// by depth-first search along edge direction. It reports false when dst is not
// reachable.
func (g *Graph) SignalPath(src, dst uuid.UUID) ([]uuid.UUID, bool) {
	si, ok := g.ids[src]
	if !ok {
		return nil, false
	}

	di, ok := g.ids[dst]
	if !ok {
		return nil, false
	}

	parent := make([]NodeIndex, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	visited := make([]bool, len(g.nodes))
	stack := []NodeIndex{si}
	visited[si] = true
	found := si == di

	for len(stack) > 0 && !found {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, e := range g.nodes[idx].outgoing {
			next := g.edges[e].dst
			if visited[next] {
				continue
			}

			visited[next] = true
			parent[next] = idx

			if next == di {
				found = true
				break
			}

			stack = append(stack, next)
		}
	}

	if !found {
		return nil, false
	}

	var path []uuid.UUID
	for idx := di; idx != -1; idx = parent[idx] {
		path = append(path, g.nodes[idx].node.Descriptor().ID)
	}

	slices.Reverse(path)

	return path, true
}

// Sources returns the nodes without incoming edges in index order.
func (g *Graph) Sources() []uuid.UUID {
	return g.filter(func(s nodeSlot) bool { return len(s.incoming) == 0 })
}

// Sinks returns the nodes without outgoing edges in index order.
func (g *Graph) Sinks() []uuid.UUID {
	return g.filter(func(s nodeSlot) bool { return len(s.outgoing) == 0 })
}

// FindByType returns the nodes whose type ID starts with prefix.
func (g *Graph) FindByType(prefix string) []uuid.UUID {
	return g.filter(func(s nodeSlot) bool {
		return strings.HasPrefix(s.node.Descriptor().TypeID, prefix)
	})
}

func (g *Graph) filter(keep func(nodeSlot) bool) []uuid.UUID {
	var out []uuid.UUID

	for _, slot := range g.nodes {
		if slot.node != nil && keep(slot) {
			out = append(out, slot.node.Descriptor().ID)
		}
	}

	return out
}
