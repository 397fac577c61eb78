// Package patch builds processing graphs from declarative patch files.
//
// A patch lists named nodes with a registered type and free-form params, and
// the connections between their ports:
//
//	nodes:
//	  - name: osc
//	    type: source.sine
//	    params: {frequency: 220}
//	  - name: out
//	    type: external.output
//	connections:
//	  - from: osc.out
//	    to: out.in
//	    gain: 0.5
//
// Building uses only the public graph API, so every structural rule of the
// graph (port checks, cycle rejection) applies to patches too.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/dsp/node"
)

var (
	// ErrUnknownType is returned for a node type missing from the registry.
	ErrUnknownType = errors.New("unknown node type")
	// ErrBadParams is returned when a node's params do not decode.
	ErrBadParams = errors.New("bad node params")
	// ErrBadEndpoint is returned for a malformed or dangling connection end.
	ErrBadEndpoint = errors.New("bad connection endpoint")
	// ErrDuplicateName is returned when two patch nodes share a name.
	ErrDuplicateName = errors.New("duplicate node name")
)

// NodeSpec declares one node.
type NodeSpec struct {
	Name   string         `yaml:"name" json:"name"`
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Device returns the hardware device the node binds to: the device param
// when set, the node name otherwise.
func (n NodeSpec) Device() string {
	if d, ok := n.Params["device"].(string); ok && d != "" {
		return d
	}

	return n.Name
}

// Connection declares one edge. From and To are "node.port"; a bare node
// name means the port "out" on the source side and "in" on the destination.
type Connection struct {
	From   string   `yaml:"from" json:"from"`
	To     string   `yaml:"to" json:"to"`
	Gain   *float64 `yaml:"gain,omitempty" json:"gain,omitempty"`
	Active *bool    `yaml:"active,omitempty" json:"active,omitempty"`
}

// Patch is the root of a patch file.
type Patch struct {
	Nodes       []NodeSpec   `yaml:"nodes" json:"nodes"`
	Connections []Connection `yaml:"connections" json:"connections"`
}

// Load reads a YAML or JSON patch file, chosen by extension.
func Load(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch: %w", err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes a patch. ext selects JSON for ".json" and YAML otherwise.
func Parse(data []byte, ext string) (*Patch, error) {
	var p Patch

	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse patch json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse patch yaml: %w", err)
	}

	return &p, nil
}

// Built is the result of building a patch.
type Built struct {
	Graph *graph.Graph
	// IDs maps patch node names to graph node IDs.
	IDs map[string]uuid.UUID
	// Specs keeps the patch entry of every built node, keyed by name.
	Specs map[string]NodeSpec
}

// Node returns the built node named name.
func (b *Built) Node(name string) (node.Node, bool) {
	id, ok := b.IDs[name]
	if !ok {
		return nil, false
	}

	return b.Graph.Node(id)
}

// Builder turns patches into graphs.
type Builder struct {
	registry  *Registry
	processor core.ProcessorConfig
	graphOpts []graph.Option
}

// NewBuilder returns a builder that resolves types in reg. A nil reg uses
// DefaultRegistry.
func NewBuilder(reg *Registry, processor core.ProcessorConfig, opts ...graph.Option) *Builder {
	if reg == nil {
		reg = DefaultRegistry()
	}

	return &Builder{registry: reg, processor: processor, graphOpts: opts}
}

// Build creates a new graph from p.
func (b *Builder) Build(p *Patch) (*Built, error) {
	built := &Built{
		Graph: graph.New(b.graphOpts...),
		IDs:   make(map[string]uuid.UUID, len(p.Nodes)),
		Specs: make(map[string]NodeSpec, len(p.Nodes)),
	}

	if err := b.Apply(built, p); err != nil {
		return nil, err
	}

	return built, nil
}

// Apply adds p's nodes and connections to an existing build. Connections may
// refer to nodes created by earlier patches.
func (b *Builder) Apply(built *Built, p *Patch) error {
	for _, spec := range p.Nodes {
		if spec.Name == "" {
			return fmt.Errorf("%w: empty name", ErrBadEndpoint)
		}

		if strings.Contains(spec.Name, ".") {
			return fmt.Errorf("%w: node name %q contains '.'", ErrBadEndpoint, spec.Name)
		}

		if _, dup := built.IDs[spec.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, spec.Name)
		}

		factory := b.registry.Lookup(spec.Type)
		if factory == nil {
			return fmt.Errorf("%w: %q for node %q", ErrUnknownType, spec.Type, spec.Name)
		}

		n, err := factory(Context{Name: spec.Name, Params: spec.Params, Processor: b.processor})
		if err != nil {
			return err
		}

		built.Graph.AddNode(n)
		built.IDs[spec.Name] = n.Descriptor().ID
		built.Specs[spec.Name] = spec
	}

	for i, c := range p.Connections {
		if err := b.connect(built, c); err != nil {
			return fmt.Errorf("connection %d (%s -> %s): %w", i, c.From, c.To, err)
		}
	}

	return nil
}

func (b *Builder) connect(built *Built, c Connection) error {
	srcName, srcPort := splitEndpoint(c.From, "out")
	dstName, dstPort := splitEndpoint(c.To, "in")

	src, ok := built.IDs[srcName]
	if !ok {
		return fmt.Errorf("%w: no node %q", ErrBadEndpoint, srcName)
	}

	dst, ok := built.IDs[dstName]
	if !ok {
		return fmt.Errorf("%w: no node %q", ErrBadEndpoint, dstName)
	}

	edge := graph.Edge{SourcePort: srcPort, DestPort: dstPort, Gain: 1, Active: true}
	if c.Gain != nil {
		edge.Gain = *c.Gain
	}

	if c.Active != nil {
		edge.Active = *c.Active
	}

	_, err := built.Graph.ConnectEdge(src, dst, edge)

	return err
}

func splitEndpoint(s, defaultPort string) (string, string) {
	name, port, ok := strings.Cut(s, ".")
	if !ok || port == "" {
		return name, defaultPort
	}

	return name, port
}
