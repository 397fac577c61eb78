package node

import (
	"sync/atomic"

	"github.com/cwbudde/algo-garden/dsp/ringbuf"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

const (
	TypeExternalOutput = "external.output"
	TypeExternalInput  = "external.input"

	// ringBlocks is how many blocks of audio a bridging ring can hold.
	ringBlocks = 4
)

var (
	errOutputInactive  = &SkipError{Reason: "output not active"}
	errNoAudioInput    = &SkipError{Reason: "no audio input"}
	errInputInactive   = &SkipError{Reason: "input not active"}
	errNoAudioOutput   = &SkipError{Reason: "no audio output buffer"}
	errOutputTooSmall  = &SkipError{Reason: "audio output buffer too small"}
	errMidiInInactive  = &SkipError{Reason: "midi input not active"}
	errNoMidiOutput    = &SkipError{Reason: "no midi output buffer"}
	errMidiOutInactive = &SkipError{Reason: "midi output not active"}
	errNoMidiInput     = &SkipError{Reason: "no midi input"}
)

// RingSize is the sample capacity requested for a bridge ring: four blocks
// of interleaved audio.
func RingSize(channels, bufferFrames int) int {
	if channels < 1 {
		channels = 1
	}

	return bufferFrames * channels * ringBlocks
}

func bridgeDescriptor(name, typeID string, inputs, outputs []Port, latency int) Descriptor {
	d := NewDescriptor(name, typeID, inputs, outputs)
	d.LatencySamples = uint64(max(latency, 0))
	d.Capabilities = Capabilities{Realtime: true}

	return d
}

// ExternalOutputNode hands graph audio to a hardware output callback. The
// graph is the ring's producer; the hardware callback is its consumer.
type ExternalOutputNode struct {
	descriptor Descriptor
	channels   int
	ring       atomic.Pointer[ringbuf.RingBuffer]
	active     atomic.Bool
}

// NewExternalOutputNode returns an inactive output node with one audio input
// port "in" and a ring sized for four blocks of interleaved audio.
func NewExternalOutputNode(name string, channels, bufferFrames int) *ExternalOutputNode {
	n := &ExternalOutputNode{
		descriptor: bridgeDescriptor(name, TypeExternalOutput,
			[]Port{AudioPort("in")}, nil, bufferFrames),
		channels: max(channels, 1),
	}
	n.ring.Store(ringbuf.New(RingSize(channels, bufferFrames)))

	return n
}

func (n *ExternalOutputNode) Descriptor() *Descriptor { return &n.descriptor }

// Channels returns the interleaved channel count the ring was sized for.
func (n *ExternalOutputNode) Channels() int { return n.channels }

// RingBuffer returns the ring the hardware callback reads from.
func (n *ExternalOutputNode) RingBuffer() *ringbuf.RingBuffer { return n.ring.Load() }

// SetRingBuffer swaps in a ring shared with a device stream.
func (n *ExternalOutputNode) SetRingBuffer(r *ringbuf.RingBuffer) {
	if r != nil {
		n.ring.Store(r)
	}
}

// SetActive enables or disables realtime participation.
func (n *ExternalOutputNode) SetActive(active bool) { n.active.Store(active) }

// IsActive reports whether the node participates in processing.
func (n *ExternalOutputNode) IsActive() bool { return n.active.Load() }

// Process writes the input audio into the ring. Samples that do not fit are
// dropped; the call never blocks.
func (n *ExternalOutputNode) Process(_ *ProcessContext, inputs, _ []signal.Signal) error {
	if !n.IsActive() {
		return errOutputInactive
	}

	if len(inputs) == 0 {
		return errNoAudioInput
	}

	audio, ok := inputs[0].(*signal.AudioBuffer)
	if !ok {
		return errNoAudioInput
	}

	n.ring.Load().Write(audio.Samples)

	return nil
}

// Reset empties the ring. The graph is the producer, so the queued audio is
// dropped by the hardware callback on its next read.
func (n *ExternalOutputNode) Reset() { n.ring.Load().RequestDiscard() }

// ExternalInputNode feeds hardware input audio into the graph. The hardware
// callback is the ring's producer; the graph is its consumer.
type ExternalInputNode struct {
	descriptor Descriptor
	ring       atomic.Pointer[ringbuf.RingBuffer]
	channels   int
	active     atomic.Bool
}

// NewExternalInputNode returns an inactive input node with one audio output
// port "out".
func NewExternalInputNode(name string, channels, bufferFrames int) *ExternalInputNode {
	if channels < 1 {
		channels = 1
	}

	n := &ExternalInputNode{
		descriptor: bridgeDescriptor(name, TypeExternalInput,
			nil, []Port{AudioPort("out")}, bufferFrames),
		channels: channels,
	}
	n.ring.Store(ringbuf.New(RingSize(channels, bufferFrames)))

	return n
}

func (n *ExternalInputNode) Descriptor() *Descriptor { return &n.descriptor }

// RingBuffer returns the ring the hardware callback writes to.
func (n *ExternalInputNode) RingBuffer() *ringbuf.RingBuffer { return n.ring.Load() }

// SetRingBuffer swaps in a ring shared with a device stream.
func (n *ExternalInputNode) SetRingBuffer(r *ringbuf.RingBuffer) {
	if r != nil {
		n.ring.Store(r)
	}
}

// Channels returns the interleaved channel count.
func (n *ExternalInputNode) Channels() int { return n.channels }

// SetActive enables or disables realtime participation.
func (n *ExternalInputNode) SetActive(active bool) { n.active.Store(active) }

// IsActive reports whether the node participates in processing.
func (n *ExternalInputNode) IsActive() bool { return n.active.Load() }

// Process fills one block of output audio from the ring and zero-fills any
// underrun.
func (n *ExternalInputNode) Process(ctx *ProcessContext, _, outputs []signal.Signal) error {
	if !n.IsActive() {
		return errInputInactive
	}

	if len(outputs) == 0 {
		return errNoAudioOutput
	}

	audio, ok := outputs[0].(*signal.AudioBuffer)
	if !ok {
		return errNoAudioOutput
	}

	want := ctx.BufferSize * n.channels
	if want > cap(audio.Samples) {
		return errOutputTooSmall
	}

	audio.Samples = audio.Samples[:want]

	read := n.ring.Load().Read(audio.Samples)
	clear(audio.Samples[read:])

	return nil
}

// Reset drops any captured audio not yet consumed. The hardware callback
// may keep writing.
func (n *ExternalInputNode) Reset() { n.ring.Load().Discard() }
