package buffer

import (
	"sync"

	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

// DefaultEventCapacity is the per-port MIDI and trigger capacity.
const DefaultEventCapacity = 512

// Ports holds one buffer per input and output port of a node, in port order.
type Ports struct {
	Inputs  []signal.Signal
	Outputs []signal.Signal
}

// Pool provides sync.Pool-based reuse of port buffers across plan rebuilds.
// Every buffer it hands out is sized for the pool's block geometry and
// cleared.
type Pool struct {
	frames   int
	channels int
	events   int

	audio    sync.Pool
	midi     sync.Pool
	control  sync.Pool
	triggers sync.Pool
}

// NewPool returns a pool for blocks of frames*channels audio samples and
// eventCapacity MIDI events or triggers per port.
func NewPool(frames, channels, eventCapacity int) *Pool {
	if eventCapacity <= 0 {
		eventCapacity = DefaultEventCapacity
	}

	p := &Pool{
		frames:   max(frames, 0),
		channels: max(channels, 1),
		events:   eventCapacity,
	}

	p.audio.New = func() any { return &signal.AudioBuffer{} }
	p.midi.New = func() any { return &signal.MidiBuffer{} }
	p.control.New = func() any { return &signal.ControlBuffer{} }
	p.triggers.New = func() any { return &signal.TriggerBuffer{} }

	return p
}

// Frames returns the block length in frames.
func (p *Pool) Frames() int { return p.frames }

// Channels returns the interleaved audio channel count.
func (p *Pool) Channels() int { return p.channels }

// Get returns a cleared buffer of type t. Callers must return it with Put.
func (p *Pool) Get(t signal.Type) signal.Signal {
	switch t {
	case signal.Audio:
		b := p.audio.Get().(*signal.AudioBuffer)
		ResizeAudio(b, p.frames, p.channels)

		return b
	case signal.Midi:
		b := p.midi.Get().(*signal.MidiBuffer)
		ReserveEvents(b, p.events)

		return b
	case signal.Control:
		b := p.control.Get().(*signal.ControlBuffer)
		b.Clear()

		return b
	case signal.Trigger:
		b := p.triggers.Get().(*signal.TriggerBuffer)
		ReserveTriggers(b, p.events)

		return b
	}

	return nil
}

// Put returns a buffer to the pool. The caller must not use it afterwards.
func (p *Pool) Put(s signal.Signal) {
	switch b := s.(type) {
	case *signal.AudioBuffer:
		p.audio.Put(b)
	case *signal.MidiBuffer:
		p.midi.Put(b)
	case *signal.ControlBuffer:
		p.control.Put(b)
	case *signal.TriggerBuffer:
		p.triggers.Put(b)
	}
}

// Alloc returns buffers matching every port of d.
func (p *Pool) Alloc(d *node.Descriptor) Ports {
	ports := Ports{
		Inputs:  make([]signal.Signal, len(d.Inputs)),
		Outputs: make([]signal.Signal, len(d.Outputs)),
	}

	for i, port := range d.Inputs {
		ports.Inputs[i] = p.Get(port.SignalType)
	}

	for i, port := range d.Outputs {
		ports.Outputs[i] = p.Get(port.SignalType)
	}

	return ports
}

// Release returns every buffer in ports to the pool.
func (p *Pool) Release(ports Ports) {
	for _, s := range ports.Inputs {
		p.Put(s)
	}

	for _, s := range ports.Outputs {
		p.Put(s)
	}
}
