package node

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-garden/dsp/signal"
)

const (
	TypePassthrough = "util.passthrough"
	TypeGain        = "util.gain"
	TypeSine        = "source.sine"
	TypeNullSink    = "sink.null"
)

var errAudioMismatch = &SkipError{Reason: "audio buffer mismatch"}

func plainDescriptor(name, typeID string, inputs, outputs []Port) Descriptor {
	d := NewDescriptor(name, typeID, inputs, outputs)
	d.Capabilities = Capabilities{Realtime: true, Offline: true}

	return d
}

func audioPair(inputs, outputs []signal.Signal) (*signal.AudioBuffer, *signal.AudioBuffer, bool) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, nil, false
	}

	in, ok := inputs[0].(*signal.AudioBuffer)
	if !ok {
		return nil, nil, false
	}

	out, ok := outputs[0].(*signal.AudioBuffer)
	if !ok || len(in.Samples) != len(out.Samples) {
		return nil, nil, false
	}

	return in, out, true
}

// Passthrough copies its audio input to its output unchanged.
type Passthrough struct {
	descriptor Descriptor
}

// NewPassthrough returns a node with audio ports "in" and "out".
func NewPassthrough(name string) *Passthrough {
	return &Passthrough{
		descriptor: plainDescriptor(name, TypePassthrough,
			[]Port{AudioPort("in")}, []Port{AudioPort("out")}),
	}
}

func (p *Passthrough) Descriptor() *Descriptor { return &p.descriptor }

func (p *Passthrough) Process(_ *ProcessContext, inputs, outputs []signal.Signal) error {
	in, out, ok := audioPair(inputs, outputs)
	if !ok {
		return errAudioMismatch
	}

	copy(out.Samples, in.Samples)

	return nil
}

func (p *Passthrough) Reset() {}

// Gain scales audio by a linear factor that may be changed while running.
type Gain struct {
	descriptor Descriptor
	gain       atomic.Uint64
}

// NewGain returns a gain node with audio ports "in" and "out".
func NewGain(name string, gain float64) *Gain {
	g := &Gain{
		descriptor: plainDescriptor(name, TypeGain,
			[]Port{AudioPort("in")}, []Port{AudioPort("out")}),
	}
	g.SetGain(gain)

	return g
}

func (g *Gain) Descriptor() *Descriptor { return &g.descriptor }

// SetGain sets the linear gain factor.
func (g *Gain) SetGain(gain float64) { g.gain.Store(math.Float64bits(gain)) }

// Gain returns the linear gain factor.
func (g *Gain) Gain() float64 { return math.Float64frombits(g.gain.Load()) }

func (g *Gain) Process(_ *ProcessContext, inputs, outputs []signal.Signal) error {
	in, out, ok := audioPair(inputs, outputs)
	if !ok {
		return errAudioMismatch
	}

	vecmath.ScaleBlock(out.Samples, in.Samples, g.Gain())

	return nil
}

func (g *Gain) Reset() {}

// Sine is a test tone generator writing the same sine to every channel.
type Sine struct {
	descriptor Descriptor
	freq       float64
	amplitude  float64
	phase      float64
}

// NewSine returns a sine source with audio output "out".
func NewSine(name string, freq, amplitude float64) *Sine {
	return &Sine{
		descriptor: plainDescriptor(name, TypeSine, nil, []Port{AudioPort("out")}),
		freq:       freq,
		amplitude:  amplitude,
	}
}

func (s *Sine) Descriptor() *Descriptor { return &s.descriptor }

// Frequency returns the tone frequency in Hz.
func (s *Sine) Frequency() float64 { return s.freq }

func (s *Sine) Process(ctx *ProcessContext, _, outputs []signal.Signal) error {
	if len(outputs) == 0 {
		return errNoAudioOutput
	}

	out, ok := outputs[0].(*signal.AudioBuffer)
	if !ok || ctx.SampleRate <= 0 {
		return errNoAudioOutput
	}

	channels := max(out.Channels, 1)
	step := 2 * math.Pi * s.freq / ctx.SampleRate

	for i := 0; i+channels <= len(out.Samples); i += channels {
		v := s.amplitude * math.Sin(s.phase)
		for c := range channels {
			out.Samples[i+c] = v
		}

		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}

	return nil
}

// Reset restarts the oscillator at phase zero.
func (s *Sine) Reset() { s.phase = 0 }

// Sink consumes audio and tracks its absolute peak.
type Sink struct {
	descriptor Descriptor
	peak       atomic.Uint64
	blocks     atomic.Uint64
}

// NewSink returns a sink with audio input "in".
func NewSink(name string) *Sink {
	return &Sink{
		descriptor: plainDescriptor(name, TypeNullSink, []Port{AudioPort("in")}, nil),
	}
}

func (s *Sink) Descriptor() *Descriptor { return &s.descriptor }

func (s *Sink) Process(_ *ProcessContext, inputs, _ []signal.Signal) error {
	if len(inputs) == 0 {
		return errNoAudioInput
	}

	in, ok := inputs[0].(*signal.AudioBuffer)
	if !ok {
		return errNoAudioInput
	}

	peak := s.Peak()
	for _, v := range in.Samples {
		peak = max(peak, math.Abs(v))
	}

	s.peak.Store(math.Float64bits(peak))
	s.blocks.Add(1)

	return nil
}

// Peak returns the largest absolute sample seen since the last reset.
func (s *Sink) Peak() float64 { return math.Float64frombits(s.peak.Load()) }

// Blocks returns how many blocks have been consumed.
func (s *Sink) Blocks() uint64 { return s.blocks.Load() }

func (s *Sink) Reset() {
	s.peak.Store(0)
	s.blocks.Store(0)
}
