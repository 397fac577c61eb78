// Package garden hosts a processing graph: it owns the graph, the reference
// engine and the hardware device manager, and serializes graph edits against
// engine ticks.
package garden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/engine"
	"github.com/cwbudde/algo-garden/dsp/eventqueue"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/ringbuf"
	"github.com/cwbudde/algo-garden/internal/logging"
	"github.com/cwbudde/algo-garden/internal/metrics"
	"github.com/cwbudde/algo-garden/internal/patch"
)

// ErrUnknownNode is returned when a node reference resolves to nothing.
var ErrUnknownNode = errors.New("unknown node")

// Option configures a Garden.
type Option func(*Garden)

// WithLogger sets the service logger. It is passed on to the graph and the
// engine.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Garden) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics registers engine and device metrics with c.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Garden) { g.metrics = c }
}

// WithRegistry sets the node types available to LoadPatch.
func WithRegistry(reg *patch.Registry) Option {
	return func(g *Garden) {
		if reg != nil {
			g.registry = reg
		}
	}
}

// Garden is a concurrency-safe host for one graph. Edits and ticks hold the
// lock exclusively; read-only views share it.
type Garden struct {
	mu sync.RWMutex

	cfg      core.ProcessorConfig
	built    *patch.Built
	engine   atomic.Pointer[engine.Engine]
	devices  *Devices
	registry *patch.Registry
	metrics  *metrics.Collector
	logger   *slog.Logger

	registered map[string]bool
}

// New returns a garden with an empty graph.
func New(cfg core.ProcessorConfig, opts ...Option) *Garden {
	g := &Garden{
		cfg:        cfg,
		devices:    NewDevices(cfg.BlockSize),
		registry:   patch.DefaultRegistry(),
		logger:     logging.NewNop(),
		registered: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(g)
	}

	g.built = &patch.Built{
		Graph: graph.New(graph.WithLogger(g.logger)),
		IDs:   map[string]uuid.UUID{},
		Specs: map[string]patch.NodeSpec{},
	}
	g.engine.Store(engine.New(g.built.Graph, cfg, engine.WithLogger(g.logger)))

	if g.metrics != nil {
		g.metrics.RegisterEngine(g.Stats)
	}

	return g
}

// Config returns the processor configuration.
func (g *Garden) Config() core.ProcessorConfig { return g.cfg }

// Devices returns the device manager.
func (g *Garden) Devices() *Devices { return g.devices }

// LoadPatch replaces the hosted graph with one built from p. Bridging nodes
// are bound to the devices named by their patch entries. On error the
// previous graph stays in place.
func (g *Garden) LoadPatch(p *patch.Patch) error {
	built, err := patch.NewBuilder(g.registry, g.cfg, graph.WithLogger(g.logger)).Build(p)
	if err != nil {
		g.edit("load_patch", err)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.devices.Release()

	for name, id := range built.IDs {
		n, _ := built.Graph.Node(id)

		bound, err := g.devices.Bind(n, built.Specs[name].Device())
		if err != nil {
			g.devices.Release()
			g.rebindLocked()
			g.edit("load_patch", err)

			return err
		}

		if bound {
			g.logger.Debug("bridge bound", "node", name, "device", built.Specs[name].Device())
		}
	}

	g.registerDevicesLocked()

	g.built = built
	g.engine.Store(engine.New(built.Graph, g.cfg, engine.WithLogger(g.logger)))
	g.edit("load_patch", nil)

	g.logger.Info("patch loaded", "nodes", built.Graph.NodeCount(), "edges", built.Graph.EdgeCount())

	return nil
}

// rebindLocked restores device bindings for the current graph.
func (g *Garden) rebindLocked() {
	for name, id := range g.built.IDs {
		if n, ok := g.built.Graph.Node(id); ok {
			_, _ = g.devices.Bind(n, g.built.Specs[name].Device())
		}
	}
}

func (g *Garden) registerDevicesLocked() {
	if g.metrics == nil {
		return
	}

	for _, d := range g.devices.List() {
		if g.registered[d.Name] {
			continue
		}

		id := d.ID

		var err error
		if d.Kind == Midi {
			q, _ := g.devices.Queue(id)
			err = g.metrics.RegisterQueue(d.Name, func() *eventqueue.Queue { return q })
		} else {
			r, _ := g.devices.Ring(id)
			err = g.metrics.RegisterRing(d.Name, func() *ringbuf.RingBuffer { return r })
		}

		if err != nil {
			g.logger.Warn("device metrics not registered", "device", d.Name, "error", err)
			continue
		}

		g.registered[d.Name] = true
	}
}

func (g *Garden) edit(op string, err error) {
	if g.metrics != nil {
		g.metrics.Edit(op, err)
	}

	if err != nil {
		g.logger.Warn("graph edit failed", "op", op, "error", err)
	}
}

// Edit runs fn with exclusive access to the graph. Ticks wait until it
// returns.
func (g *Garden) Edit(op string, fn func(*graph.Graph) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := fn(g.built.Graph)
	g.edit(op, err)

	return err
}

// AddNode adds n under name so later references may use the name.
func (g *Garden) AddNode(name string, n node.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, dup := g.built.IDs[name]; dup {
		err := fmt.Errorf("%w: %s", patch.ErrDuplicateName, name)
		g.edit("add_node", err)

		return err
	}

	g.built.Graph.AddNode(n)
	g.built.IDs[name] = n.Descriptor().ID
	g.built.Specs[name] = patch.NodeSpec{Name: name, Type: n.Descriptor().TypeID}
	g.edit("add_node", nil)

	return nil
}

// Connect links two nodes named by reference.
func (g *Garden) Connect(from, fromPort, to, toPort string) error {
	return g.Edit("connect", func(gr *graph.Graph) error {
		src, err := g.resolveLocked(from)
		if err != nil {
			return err
		}

		dst, err := g.resolveLocked(to)
		if err != nil {
			return err
		}

		_, err = gr.Connect(src, fromPort, dst, toPort)

		return err
	})
}

// Resolve maps a node reference to an ID. A reference is a UUID or a name
// given at load time.
func (g *Garden) Resolve(ref string) (uuid.UUID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.resolveLocked(ref)
}

func (g *Garden) resolveLocked(ref string) (uuid.UUID, error) {
	if id, ok := g.built.IDs[ref]; ok {
		if _, live := g.built.Graph.Node(id); live {
			return id, nil
		}
	}

	if id, err := uuid.Parse(ref); err == nil {
		if _, live := g.built.Graph.Node(id); live {
			return id, nil
		}
	}

	return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownNode, ref)
}

// Snapshot returns a serializable copy of the graph.
func (g *Garden) Snapshot() graph.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.built.Graph.Snapshot()
}

// Order returns node IDs in processing order. It may fill the graph's order
// cache, so it locks exclusively.
func (g *Garden) Order() ([]uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, err := g.built.Graph.ProcessingOrder()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(order))
	for i, idx := range order {
		ids[i] = g.built.Graph.NodeAt(idx).Descriptor().ID
	}

	return ids, nil
}

// Path returns a signal path between two node references.
func (g *Garden) Path(from, to string) ([]uuid.UUID, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	src, err := g.resolveLocked(from)
	if err != nil {
		return nil, false, err
	}

	dst, err := g.resolveLocked(to)
	if err != nil {
		return nil, false, err
	}

	path, ok := g.built.Graph.SignalPath(src, dst)

	return path, ok, nil
}

// Node returns the node behind a reference.
func (g *Garden) Node(ref string) (node.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, err := g.resolveLocked(ref)
	if err != nil {
		return nil, err
	}

	n, _ := g.built.Graph.Node(id)

	return n, nil
}

// Stats returns the engine counters without taking the lock.
func (g *Garden) Stats() engine.Stats {
	return g.engine.Load().Stats()
}

// Tick processes one block.
func (g *Garden) Tick() error {
	return g.Run(1)
}

// Run processes n blocks without releasing the graph between them.
func (g *Garden) Run(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	err := g.engine.Load().Run(n)

	if g.metrics != nil {
		g.metrics.ObserveBatch(time.Since(start))
	}

	return err
}

// Render runs n blocks and calls visit with the engine after each one, for
// capturing output buffers.
func (g *Garden) Render(n int, visit func(*engine.Engine) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.engine.Load()

	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.ObserveBatch(time.Since(start))
		}
	}()

	for range n {
		if err := e.Tick(); err != nil {
			return err
		}

		if visit != nil {
			if err := visit(e); err != nil {
				return err
			}
		}
	}

	return nil
}

// Play ticks once per block duration until ctx is done. Edits between ticks
// take effect on the next one.
func (g *Garden) Play(ctx context.Context) error {
	period := time.Duration(g.cfg.BlockDurationNanos())
	if period <= 0 {
		return fmt.Errorf("garden: invalid block duration for %+v", g.cfg)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	g.logger.Info("playing", "block", g.cfg.BlockSize, "sample_rate", g.cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("stopped", "ticks", g.Stats().Ticks)
			return nil
		case <-ticker.C:
			if err := g.Tick(); err != nil {
				g.logger.Error("tick failed", "error", err)
				return err
			}
		}
	}
}

// Reset resets every node and rewinds the transport.
func (g *Garden) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.engine.Load().Reset()
}

// ListDevices returns the registered hardware devices.
func (g *Garden) ListDevices() []Device {
	return g.devices.List()
}
