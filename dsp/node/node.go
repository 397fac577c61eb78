// Package node defines the execution contract shared by every participant in
// the processing graph, together with the bridging nodes that connect the
// graph to hardware I/O threads.
//
// Process implementations run on the realtime path: they must not allocate,
// take blocking locks or perform unbounded I/O. The bridging nodes exchange
// data with hardware callbacks exclusively through [ringbuf.RingBuffer] and
// [eventqueue.Queue], both of which return immediately.
package node

import (
	"errors"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

// Node is a unit of signal processing with typed input and output ports.
type Node interface {
	// Descriptor returns the node's immutable descriptor.
	Descriptor() *Descriptor
	// Process consumes one buffer per input port and writes one buffer per
	// output port. A *SkipError means nothing was produced this tick.
	Process(ctx *ProcessContext, inputs, outputs []signal.Signal) error
	// Reset clears internal state, e.g. on transport stop or reconfiguration.
	Reset()
}

// Port is a named, typed connection endpoint.
type Port struct {
	Name       string      `json:"name"`
	SignalType signal.Type `json:"signal_type"`
}

// AudioPort returns an audio port with the given name.
func AudioPort(name string) Port { return Port{Name: name, SignalType: signal.Audio} }

// MidiPort returns a MIDI port with the given name.
func MidiPort(name string) Port { return Port{Name: name, SignalType: signal.Midi} }

// Capabilities describes the processing modes a node supports.
type Capabilities struct {
	Realtime bool `json:"realtime"`
	Offline  bool `json:"offline"`
}

// URIs returns the capability identifiers advertised for the node.
func (c Capabilities) URIs() []string {
	var uris []string
	if c.Realtime {
		uris = append(uris, "audio:realtime")
	}

	if c.Offline {
		uris = append(uris, "audio:offline")
	}

	return uris
}

// Descriptor identifies a node and declares its ports. It is never mutated
// after construction.
type Descriptor struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	TypeID         string       `json:"type_id"`
	Inputs         []Port       `json:"inputs"`
	Outputs        []Port       `json:"outputs"`
	LatencySamples uint64       `json:"latency_samples"`
	Capabilities   Capabilities `json:"capabilities"`
}

// NewDescriptor returns a descriptor with a fresh random ID.
func NewDescriptor(name, typeID string, inputs, outputs []Port) Descriptor {
	if inputs == nil {
		inputs = []Port{}
	}

	if outputs == nil {
		outputs = []Port{}
	}

	return Descriptor{
		ID:      uuid.New(),
		Name:    name,
		TypeID:  typeID,
		Inputs:  inputs,
		Outputs: outputs,
	}
}

// Input returns the index of the named input port, or -1.
func (d *Descriptor) Input(name string) int {
	return findPort(d.Inputs, name)
}

// Output returns the index of the named output port, or -1.
func (d *Descriptor) Output(name string) int {
	return findPort(d.Outputs, name)
}

func findPort(ports []Port, name string) int {
	for i, p := range ports {
		if p.Name == name {
			return i
		}
	}

	return -1
}

// Mode selects realtime or offline processing.
type Mode uint8

const (
	Offline Mode = iota
	Realtime
)

// TransportState is the host transport state.
type TransportState uint8

const (
	Stopped TransportState = iota
	Playing
	Recording
)

// ProcessContext carries the per-tick processing parameters.
type ProcessContext struct {
	SampleRate float64
	// BufferSize is the tick length in frames.
	BufferSize      int
	PositionSamples uint64
	PositionBeats   float64
	// Tempo is the tempo reference in BPM.
	Tempo     float64
	Mode      Mode
	Transport TransportState
	// DeadlineNanos bounds a realtime tick; zero in offline mode.
	DeadlineNanos uint64
}

// NewProcessContext derives a context at transport position zero from cfg.
func NewProcessContext(cfg core.ProcessorConfig) *ProcessContext {
	ctx := &ProcessContext{
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BlockSize,
		Tempo:      cfg.Tempo,
		Mode:       Offline,
	}

	if cfg.Realtime {
		ctx.Mode = Realtime
		ctx.DeadlineNanos = cfg.BlockDurationNanos()
	}

	return ctx
}

// Advance moves the transport position forward by one tick.
func (c *ProcessContext) Advance() {
	c.PositionSamples += uint64(c.BufferSize)
	if c.SampleRate > 0 {
		c.PositionBeats += float64(c.BufferSize) / c.SampleRate * c.Tempo / 60
	}
}

// SkipError reports that a node produced nothing this tick. It is expected
// and non-fatal; the driver treats the node's outputs as silence.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "node skipped: " + e.Reason
}

// Skip returns a SkipError with the given reason. It allocates, so realtime
// code should return a package-level SkipError value instead.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// IsSkipped reports whether err is, or wraps, a SkipError.
func IsSkipped(err error) bool {
	if _, ok := err.(*SkipError); ok {
		return true
	}

	var skip *SkipError
	return errors.As(err, &skip)
}
