package signal

import "fmt"

// Type identifies the kind of signal carried by a port or buffer.
type Type uint8

const (
	Audio Type = iota
	Midi
	Control
	Trigger
)

var typeNames = [...]string{
	Audio:   "Audio",
	Midi:    "Midi",
	Control: "Control",
	Trigger: "Trigger",
}

// String returns the canonical name of the signal type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}

	return fmt.Sprintf("Type(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if int(t) >= len(typeNames) {
		return nil, fmt.Errorf("signal: invalid type %d", uint8(t))
	}

	return []byte(typeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ParseType converts a type name (case-sensitive canonical form or lower case)
// into a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "Audio", "audio":
		return Audio, nil
	case "Midi", "midi", "MIDI":
		return Midi, nil
	case "Control", "control":
		return Control, nil
	case "Trigger", "trigger":
		return Trigger, nil
	}

	return 0, fmt.Errorf("signal: unknown type %q", name)
}

// Signal is one per-port buffer handed to a node during processing.
// The set of implementations is closed: *AudioBuffer, *MidiBuffer,
// *ControlBuffer and *TriggerBuffer.
type Signal interface {
	Type() Type
	// Clear resets the buffer to silence without releasing capacity.
	Clear()
	sealed()
}

// AudioBuffer holds interleaved audio samples.
type AudioBuffer struct {
	Samples  []float64
	Channels int
}

// NewAudioBuffer returns a zeroed buffer for frames*channels samples.
func NewAudioBuffer(frames, channels int) *AudioBuffer {
	if channels < 1 {
		channels = 1
	}

	if frames < 0 {
		frames = 0
	}

	return &AudioBuffer{
		Samples:  make([]float64, frames*channels),
		Channels: channels,
	}
}

func (*AudioBuffer) Type() Type { return Audio }
func (*AudioBuffer) sealed()    {}

// Frames returns the number of sample frames held.
func (b *AudioBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}

	return len(b.Samples) / b.Channels
}

// Mix accumulates other*gain into b. Buffers of different length are ignored.
func (b *AudioBuffer) Mix(other *AudioBuffer, gain float64) {
	if other == nil || len(b.Samples) != len(other.Samples) {
		return
	}

	for i, s := range other.Samples {
		b.Samples[i] += s * gain
	}
}

// Clear zeroes all samples.
func (b *AudioBuffer) Clear() {
	clear(b.Samples)
}

// ControlBuffer is a control signal ramping from Start to End over one tick.
type ControlBuffer struct {
	Start float64
	End   float64
}

// Constant returns a control buffer holding value for the whole tick.
func Constant(value float64) *ControlBuffer {
	return &ControlBuffer{Start: value, End: value}
}

func (*ControlBuffer) Type() Type { return Control }
func (*ControlBuffer) sealed()    {}

// At interpolates the control value at normalized position t in [0, 1].
func (b *ControlBuffer) At(t float64) float64 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return b.Start + (b.End-b.Start)*t
}

// Clear sets the control value to zero.
func (b *ControlBuffer) Clear() {
	b.Start, b.End = 0, 0
}

// TriggerKind classifies a discrete trigger.
type TriggerKind uint8

const (
	TriggerBeat TriggerKind = iota
	TriggerBar
	TriggerMarker
	TriggerCustom
)

// TriggerEvent is a discrete trigger at a tick-relative frame.
type TriggerEvent struct {
	Frame uint32
	Kind  TriggerKind
	Label string
}

// TriggerBuffer collects trigger events for one tick. Append never grows the
// backing array past its initial capacity.
type TriggerBuffer struct {
	Triggers []TriggerEvent
}

// NewTriggerBuffer returns an empty trigger buffer with fixed capacity.
func NewTriggerBuffer(capacity int) *TriggerBuffer {
	return &TriggerBuffer{Triggers: make([]TriggerEvent, 0, capacity)}
}

func (*TriggerBuffer) Type() Type { return Trigger }
func (*TriggerBuffer) sealed()    {}

// Append adds t if capacity allows and reports whether it was stored.
func (b *TriggerBuffer) Append(t TriggerEvent) bool {
	if len(b.Triggers) == cap(b.Triggers) {
		return false
	}

	b.Triggers = append(b.Triggers, t)

	return true
}

// Clear drops all triggers.
func (b *TriggerBuffer) Clear() {
	b.Triggers = b.Triggers[:0]
}

// New allocates an empty buffer of the given type. Audio buffers are sized to
// frames*channels; event buffers reserve eventCapacity slots.
func New(t Type, frames, channels, eventCapacity int) Signal {
	switch t {
	case Audio:
		return NewAudioBuffer(frames, channels)
	case Midi:
		return NewMidiBuffer(eventCapacity)
	case Control:
		return &ControlBuffer{}
	case Trigger:
		return NewTriggerBuffer(eventCapacity)
	}

	return nil
}
