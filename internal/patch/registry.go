package patch

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/node"
)

// Context is handed to a Factory for one patch node.
type Context struct {
	Name      string
	Params    map[string]any
	Processor core.ProcessorConfig
}

// Decode copies Params into out. Unknown keys are an error so that typos in
// a patch file do not pass silently.
func (c Context) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(c.Params); err != nil {
		return fmt.Errorf("%w: node %q: %w", ErrBadParams, c.Name, err)
	}

	return nil
}

// Factory builds one node from its patch entry.
type Factory func(ctx Context) (node.Node, error)

// Registry maps node type IDs to their factories.
type Registry struct {
	factories map[string]Factory
}

var errDuplicateType = errors.New("duplicate node type")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for typeID.
func (r *Registry) Register(typeID string, factory Factory) error {
	if typeID == "" {
		return errors.New("empty node type")
	}

	if factory == nil {
		return errors.New("nil factory")
	}

	if _, exists := r.factories[typeID]; exists {
		return fmt.Errorf("%w: %s", errDuplicateType, typeID)
	}

	r.factories[typeID] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(typeID string, factory Factory) {
	if err := r.Register(typeID, factory); err != nil {
		panic("patch registry: " + err.Error())
	}
}

// Lookup returns the factory for typeID, or nil.
func (r *Registry) Lookup(typeID string) Factory {
	return r.factories[typeID]
}

// Types returns the registered type IDs in no particular order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}

	return out
}
