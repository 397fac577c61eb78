// Package engine is a reference host driver for a processing graph. It keeps
// a buffer plan derived from the graph's processing order, mixes incoming
// edges into each node's input buffers and calls Process once per tick.
//
// The plan is rebuilt whenever the graph's Version changes. Between rebuilds
// a tick does not allocate. An Engine must not tick while its graph is being
// mutated; hosts serialize the two.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/buffer"
	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

// ErrNoBuffer is returned when a node or port has no buffer in the plan.
var ErrNoBuffer = errors.New("no buffer for port")

// route feeds one input port from an upstream output buffer.
type route struct {
	src    signal.Signal
	gain   float64
	active bool
}

type step struct {
	index  graph.NodeIndex
	node   node.Node
	ports  buffer.Ports
	routes [][]route
}

// Stats is a point-in-time view of the engine counters.
type Stats struct {
	Ticks           uint64 `json:"ticks"`
	Skipped         uint64 `json:"skipped"`
	Failed          uint64 `json:"failed"`
	PositionSamples uint64 `json:"position_samples"`
	Nodes           int    `json:"nodes"`
}

// Engine drives a graph one block at a time.
type Engine struct {
	graph *graph.Graph
	cfg   core.ProcessorConfig
	ctx   *node.ProcessContext
	pool  *buffer.Pool

	plan        []step
	byIndex     map[graph.NodeIndex]int
	planVersion uint64
	planned     bool
	scratch     []float64

	ticks    atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
	position atomic.Uint64
	nodes    atomic.Int64

	eventCapacity int
	logger        *slog.Logger
}

// New returns an engine for g using the block geometry in cfg.
func New(g *graph.Graph, cfg core.ProcessorConfig, opts ...Option) *Engine {
	e := &Engine{
		graph:         g,
		cfg:           cfg,
		ctx:           node.NewProcessContext(cfg),
		eventCapacity: buffer.DefaultEventCapacity,
		logger:        discardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pool = buffer.NewPool(cfg.BlockSize, cfg.Channels, e.eventCapacity)
	e.scratch = make([]float64, cfg.BlockSize*max(cfg.Channels, 1))

	return e
}

// Config returns the processor configuration.
func (e *Engine) Config() core.ProcessorConfig { return e.cfg }

// Context returns the process context handed to nodes.
func (e *Engine) Context() *node.ProcessContext { return e.ctx }

// SetTransport changes the transport state reported to nodes.
func (e *Engine) SetTransport(state node.TransportState) { e.ctx.Transport = state }

// Stats returns the current counters. Safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:           e.ticks.Load(),
		Skipped:         e.skipped.Load(),
		Failed:          e.failed.Load(),
		PositionSamples: e.position.Load(),
		Nodes:           int(e.nodes.Load()),
	}
}

// Prepare rebuilds the buffer plan if the graph changed since the last build.
func (e *Engine) Prepare() error {
	if e.planned && e.planVersion == e.graph.Version() {
		return nil
	}

	order, err := e.graph.ProcessingOrder()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	for _, s := range e.plan {
		e.pool.Release(s.ports)
	}

	plan := make([]step, 0, len(order))
	byIndex := make(map[graph.NodeIndex]int, len(order))

	for _, idx := range order {
		n := e.graph.NodeAt(idx)
		byIndex[idx] = len(plan)
		plan = append(plan, step{
			index:  idx,
			node:   n,
			ports:  e.pool.Alloc(n.Descriptor()),
			routes: make([][]route, len(n.Descriptor().Inputs)),
		})
	}

	for i := range plan {
		s := &plan[i]
		d := s.node.Descriptor()

		for _, ref := range e.graph.IncomingEdges(s.index) {
			up := &plan[byIndex[ref.Peer]]

			out := up.node.Descriptor().Output(ref.Edge.SourcePort)
			in := d.Input(ref.Edge.DestPort)

			if out < 0 || in < 0 {
				e.logger.Warn("edge references missing port",
					"src", up.node.Descriptor().Name, "src_port", ref.Edge.SourcePort,
					"dst", d.Name, "dst_port", ref.Edge.DestPort)

				continue
			}

			s.routes[in] = append(s.routes[in], route{
				src:    up.ports.Outputs[out],
				gain:   ref.Edge.Gain,
				active: ref.Edge.Active,
			})
		}
	}

	e.plan = plan
	e.byIndex = byIndex
	e.planVersion = e.graph.Version()
	e.planned = true
	e.nodes.Store(int64(len(plan)))

	e.logger.Debug("plan rebuilt", "nodes", len(plan), "version", e.planVersion)

	return nil
}

// Tick processes one block. Skipped and failed nodes produce silence and do
// not stop the others.
func (e *Engine) Tick() error {
	if err := e.Prepare(); err != nil {
		return err
	}

	for i := range e.plan {
		s := &e.plan[i]

		for port, in := range s.ports.Inputs {
			e.gather(in, s.routes[port])
		}

		clearAll(s.ports.Outputs)

		if err := s.node.Process(e.ctx, s.ports.Inputs, s.ports.Outputs); err != nil {
			if node.IsSkipped(err) {
				e.skipped.Add(1)
			} else {
				e.failed.Add(1)
			}

			clearAll(s.ports.Outputs)
		}
	}

	e.ctx.Advance()
	e.position.Store(e.ctx.PositionSamples)
	e.ticks.Add(1)

	return nil
}

// Run ticks n times and stops at the first plan error.
func (e *Engine) Run(n int) error {
	for range n {
		if err := e.Tick(); err != nil {
			return err
		}
	}

	return nil
}

// Reset resets every node and rewinds the transport. Counters keep counting.
func (e *Engine) Reset() {
	for _, s := range e.plan {
		s.node.Reset()
		clearAll(s.ports.Inputs)
		clearAll(s.ports.Outputs)
	}

	e.ctx.PositionSamples = 0
	e.ctx.PositionBeats = 0
	e.position.Store(0)

	e.logger.Debug("engine reset")
}

// OutputBuffer returns the buffer the node writes for its named output port.
// The buffer is overwritten on every tick.
func (e *Engine) OutputBuffer(id uuid.UUID, port string) (signal.Signal, error) {
	s, err := e.stepFor(id)
	if err != nil {
		return nil, err
	}

	i := s.node.Descriptor().Output(port)
	if i < 0 {
		return nil, fmt.Errorf("%w: output %q", ErrNoBuffer, port)
	}

	return s.ports.Outputs[i], nil
}

// InputBuffer returns the mixed buffer delivered to the node's named input.
func (e *Engine) InputBuffer(id uuid.UUID, port string) (signal.Signal, error) {
	s, err := e.stepFor(id)
	if err != nil {
		return nil, err
	}

	i := s.node.Descriptor().Input(port)
	if i < 0 {
		return nil, fmt.Errorf("%w: input %q", ErrNoBuffer, port)
	}

	return s.ports.Inputs[i], nil
}

func (e *Engine) stepFor(id uuid.UUID) (*step, error) {
	if err := e.Prepare(); err != nil {
		return nil, err
	}

	idx, ok := e.graph.IndexOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: node %s", ErrNoBuffer, id)
	}

	return &e.plan[e.byIndex[idx]], nil
}

// gather clears dst and mixes every active route into it.
func (e *Engine) gather(dst signal.Signal, routes []route) {
	dst.Clear()

	for _, r := range routes {
		if !r.active {
			continue
		}

		switch d := dst.(type) {
		case *signal.AudioBuffer:
			src, ok := r.src.(*signal.AudioBuffer)
			if ok {
				e.mixAudio(d.Samples, src.Samples, r.gain)
			}
		case *signal.MidiBuffer:
			if src, ok := r.src.(*signal.MidiBuffer); ok {
				d.Merge(src)
			}
		case *signal.ControlBuffer:
			if src, ok := r.src.(*signal.ControlBuffer); ok {
				d.Start += src.Start * r.gain
				d.End += src.End * r.gain
			}
		case *signal.TriggerBuffer:
			if src, ok := r.src.(*signal.TriggerBuffer); ok {
				for _, t := range src.Triggers {
					d.Append(t)
				}
			}
		}
	}
}

func (e *Engine) mixAudio(dst, src []float64, gain float64) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}

	if gain == 1 {
		vecmath.AddBlockInPlace(dst[:n], src[:n])
		return
	}

	n = min(n, len(e.scratch))
	scaled := e.scratch[:n]
	vecmath.ScaleBlock(scaled, src[:n], gain)
	vecmath.AddBlockInPlace(dst[:n], scaled)
}

func clearAll(bufs []signal.Signal) {
	for _, b := range bufs {
		b.Clear()
	}
}
