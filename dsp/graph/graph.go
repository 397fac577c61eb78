// Package graph implements the processing DAG: an arena of nodes connected by
// typed, weighted edges, with a UUID side map for external identity and a
// cached topological order for the scheduling driver.
//
// A Graph is not safe for concurrent use. Hosts must not mutate it while a
// driver tick is walking ProcessingOrder; the read accessors used on the tick
// path (ProcessingOrder, NodeAt) do not allocate once the order is cached.
package graph

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/node"
)

// NodeIndex addresses a node slot in the arena. Indices of removed nodes are
// never reused.
type NodeIndex int

// EdgeIndex addresses an edge slot in the arena.
type EdgeIndex int

// Edge is a typed, weighted, toggleable connection between two ports.
type Edge struct {
	SourcePort string  `json:"source_port"`
	DestPort   string  `json:"dest_port"`
	Gain       float64 `json:"gain"`
	Active     bool    `json:"active"`
}

// EdgeRef is an edge seen from one of its endpoints.
type EdgeRef struct {
	Index EdgeIndex
	// Peer is the node at the other end of the edge.
	Peer NodeIndex
	Edge Edge
}

type nodeSlot struct {
	node     node.Node
	incoming []EdgeIndex
	outgoing []EdgeIndex
}

type edgeSlot struct {
	src, dst NodeIndex
	edge     Edge
	live     bool
}

// Graph owns nodes and edges.
type Graph struct {
	nodes []nodeSlot
	edges []edgeSlot
	ids   map[uuid.UUID]NodeIndex

	nodeCount int
	edgeCount int

	order      []NodeIndex
	orderValid bool
	version    uint64

	logger *slog.Logger
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		ids:    make(map[uuid.UUID]NodeIndex),
		logger: discardLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// AddNode inserts n and registers its UUID. If another live node already
// carries that UUID it is evicted together with its edges.
func (g *Graph) AddNode(n node.Node) NodeIndex {
	id := n.Descriptor().ID
	if old, ok := g.ids[id]; ok {
		g.logger.Warn("evicting node with duplicate id", "id", id, "index", old)
		g.removeAt(old)
	}

	idx := NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, nodeSlot{node: n})
	g.ids[id] = idx
	g.nodeCount++
	g.invalidate()

	g.logger.Debug("node added",
		"id", id, "name", n.Descriptor().Name, "type", n.Descriptor().TypeID, "index", idx)

	return idx
}

// RemoveNode removes the node and every edge touching it.
func (g *Graph) RemoveNode(id uuid.UUID) (node.Node, bool) {
	idx, ok := g.ids[id]
	if !ok {
		return nil, false
	}

	n := g.removeAt(idx)
	g.logger.Debug("node removed", "id", id, "index", idx)

	return n, true
}

func (g *Graph) removeAt(idx NodeIndex) node.Node {
	slot := &g.nodes[idx]

	for _, e := range slices.Concat(slot.incoming, slot.outgoing) {
		g.dropEdge(e)
	}

	n := slot.node
	*slot = nodeSlot{}

	delete(g.ids, n.Descriptor().ID)
	g.nodeCount--
	g.invalidate()

	return n
}

// Node returns the node registered under id.
func (g *Graph) Node(id uuid.UUID) (node.Node, bool) {
	idx, ok := g.ids[id]
	if !ok {
		return nil, false
	}

	return g.nodes[idx].node, true
}

// NodeAt returns the node at idx, or nil if the slot is empty.
func (g *Graph) NodeAt(idx NodeIndex) node.Node {
	if idx < 0 || int(idx) >= len(g.nodes) {
		return nil
	}

	return g.nodes[idx].node
}

// IndexOf returns the arena index of the node registered under id.
func (g *Graph) IndexOf(id uuid.UUID) (NodeIndex, bool) {
	idx, ok := g.ids[id]
	return idx, ok
}

// NodeIDs returns the IDs of all live nodes in index order.
func (g *Graph) NodeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, g.nodeCount)
	for _, slot := range g.nodes {
		if slot.node != nil {
			ids = append(ids, slot.node.Descriptor().ID)
		}
	}

	return ids
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return g.nodeCount }

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Version changes on every mutation, including edge gain and active flag
// updates. Drivers compare it to decide when to rebuild buffer plans.
func (g *Graph) Version() uint64 { return g.version }

// IncomingEdges lists the edges arriving at idx in insertion order.
func (g *Graph) IncomingEdges(idx NodeIndex) []EdgeRef {
	if g.NodeAt(idx) == nil {
		return nil
	}

	in := g.nodes[idx].incoming
	refs := make([]EdgeRef, 0, len(in))

	for _, e := range in {
		slot := g.edges[e]
		refs = append(refs, EdgeRef{Index: e, Peer: slot.src, Edge: slot.edge})
	}

	return refs
}

// OutgoingEdges lists the edges leaving idx in insertion order.
func (g *Graph) OutgoingEdges(idx NodeIndex) []EdgeRef {
	if g.NodeAt(idx) == nil {
		return nil
	}

	out := g.nodes[idx].outgoing
	refs := make([]EdgeRef, 0, len(out))

	for _, e := range out {
		slot := g.edges[e]
		refs = append(refs, EdgeRef{Index: e, Peer: slot.dst, Edge: slot.edge})
	}

	return refs
}

func (g *Graph) invalidate() {
	g.orderValid = false
	g.order = nil
	g.version++
}

func (g *Graph) addEdge(src, dst NodeIndex, e Edge) EdgeIndex {
	idx := EdgeIndex(len(g.edges))
	g.edges = append(g.edges, edgeSlot{src: src, dst: dst, edge: e, live: true})
	g.nodes[src].outgoing = append(g.nodes[src].outgoing, idx)
	g.nodes[dst].incoming = append(g.nodes[dst].incoming, idx)
	g.edgeCount++

	return idx
}

func (g *Graph) dropEdge(idx EdgeIndex) {
	slot := &g.edges[idx]
	if !slot.live {
		return
	}

	g.nodes[slot.src].outgoing = removeIndex(g.nodes[slot.src].outgoing, idx)
	g.nodes[slot.dst].incoming = removeIndex(g.nodes[slot.dst].incoming, idx)
	slot.live = false
	g.edgeCount--
}

// unwindEdge removes the edge addEdge just created. Its index was never
// handed out, so the slot is truncated rather than kept dead.
func (g *Graph) unwindEdge(idx EdgeIndex) {
	g.dropEdge(idx)

	if int(idx) == len(g.edges)-1 {
		g.edges = g.edges[:idx]
	}
}

// findEdge returns the first live edge src→dst in outgoing order.
func (g *Graph) findEdge(src, dst NodeIndex) (EdgeIndex, bool) {
	for _, e := range g.nodes[src].outgoing {
		if g.edges[e].dst == dst {
			return e, true
		}
	}

	return 0, false
}

func removeIndex(list []EdgeIndex, idx EdgeIndex) []EdgeIndex {
	for i, e := range list {
		if e == idx {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}
