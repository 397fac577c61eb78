package signal

import (
	"errors"
	"fmt"
	"slices"

	"gitlab.com/gomidi/midi/v2"
)

// MessageKind enumerates the MIDI messages carried through the graph.
type MessageKind uint8

const (
	NoteOn MessageKind = iota + 1
	NoteOff
	ControlChange
	ProgramChange
	PitchBend
	Start
	Stop
	Continue
	TimingClock
)

var kindNames = map[MessageKind]string{
	NoteOn:        "NoteOn",
	NoteOff:       "NoteOff",
	ControlChange: "ControlChange",
	ProgramChange: "ProgramChange",
	PitchBend:     "PitchBend",
	Start:         "Start",
	Stop:          "Stop",
	Continue:      "Continue",
	TimingClock:   "TimingClock",
}

func (k MessageKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("MessageKind(%d)", uint8(k))
}

// ErrUnsupportedMessage is returned when raw bytes do not map to a MidiMessage.
var ErrUnsupportedMessage = errors.New("unsupported midi message")

// MidiMessage is a decoded MIDI message. Only the fields relevant to Kind
// are meaningful.
type MidiMessage struct {
	Kind       MessageKind
	Channel    uint8
	Pitch      uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Program    uint8
	Bend       int16
}

// NoteOnMessage builds a note-on message.
func NoteOnMessage(channel, pitch, velocity uint8) MidiMessage {
	return MidiMessage{Kind: NoteOn, Channel: channel, Pitch: pitch, Velocity: velocity}
}

// NoteOffMessage builds a note-off message.
func NoteOffMessage(channel, pitch uint8) MidiMessage {
	return MidiMessage{Kind: NoteOff, Channel: channel, Pitch: pitch}
}

// ControlChangeMessage builds a control change message.
func ControlChangeMessage(channel, controller, value uint8) MidiMessage {
	return MidiMessage{Kind: ControlChange, Channel: channel, Controller: controller, Value: value}
}

// Bytes encodes the message as raw MIDI bytes for a hardware adapter.
// It allocates and must not be called on the realtime path.
func (m MidiMessage) Bytes() ([]byte, error) {
	var msg midi.Message

	switch m.Kind {
	case NoteOn:
		msg = midi.NoteOn(m.Channel, m.Pitch, m.Velocity)
	case NoteOff:
		msg = midi.NoteOff(m.Channel, m.Pitch)
	case ControlChange:
		msg = midi.ControlChange(m.Channel, m.Controller, m.Value)
	case ProgramChange:
		msg = midi.ProgramChange(m.Channel, m.Program)
	case PitchBend:
		msg = midi.Pitchbend(m.Channel, m.Bend)
	case Start:
		msg = midi.Start()
	case Stop:
		msg = midi.Stop()
	case Continue:
		msg = midi.Continue()
	case TimingClock:
		msg = midi.TimingClock()
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedMessage, m.Kind)
	}

	return []byte(msg), nil
}

// ParseMidi decodes raw MIDI bytes received from a hardware adapter.
// A note-on with zero velocity is reported as NoteOff.
func ParseMidi(raw []byte) (MidiMessage, error) {
	if len(raw) == 0 {
		return MidiMessage{}, fmt.Errorf("%w: empty message", ErrUnsupportedMessage)
	}

	switch raw[0] {
	case 0xFA:
		return MidiMessage{Kind: Start}, nil
	case 0xFC:
		return MidiMessage{Kind: Stop}, nil
	case 0xFB:
		return MidiMessage{Kind: Continue}, nil
	case 0xF8:
		return MidiMessage{Kind: TimingClock}, nil
	}

	msg := midi.Message(raw)

	var (
		ch, key, vel uint8
		rel          int16
		abs          uint16
	)

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return NoteOnMessage(ch, key, vel), nil
	case msg.GetNoteEnd(&ch, &key):
		return NoteOffMessage(ch, key), nil
	case msg.GetControlChange(&ch, &key, &vel):
		return ControlChangeMessage(ch, key, vel), nil
	case msg.GetProgramChange(&ch, &key):
		return MidiMessage{Kind: ProgramChange, Channel: ch, Program: key}, nil
	case msg.GetPitchBend(&ch, &rel, &abs):
		return MidiMessage{Kind: PitchBend, Channel: ch, Bend: rel}, nil
	}

	return MidiMessage{}, fmt.Errorf("%w: % X", ErrUnsupportedMessage, raw)
}

// MidiEvent is a MIDI message at a tick-relative frame offset.
type MidiEvent struct {
	Frame   uint32
	Message MidiMessage
}

// MidiBuffer holds the MIDI events of one tick. Its capacity is fixed at
// construction so appends on the processing path never allocate.
type MidiBuffer struct {
	Events []MidiEvent
}

// NewMidiBuffer returns an empty buffer with room for capacity events.
func NewMidiBuffer(capacity int) *MidiBuffer {
	return &MidiBuffer{Events: make([]MidiEvent, 0, capacity)}
}

func (*MidiBuffer) Type() Type { return Midi }
func (*MidiBuffer) sealed()    {}

// Append adds ev if capacity allows and reports whether it was stored.
func (b *MidiBuffer) Append(ev MidiEvent) bool {
	if len(b.Events) == cap(b.Events) {
		return false
	}

	b.Events = append(b.Events, ev)

	return true
}

// Merge appends as many of other's events as fit and re-sorts by frame.
func (b *MidiBuffer) Merge(other *MidiBuffer) {
	if other == nil {
		return
	}

	for _, ev := range other.Events {
		if !b.Append(ev) {
			break
		}
	}

	SortByFrame(b.Events)
}

// Clear drops all events.
func (b *MidiBuffer) Clear() {
	b.Events = b.Events[:0]
}

// SortByFrame stable-sorts events by ascending frame without allocating.
func SortByFrame(events []MidiEvent) {
	slices.SortStableFunc(events, func(a, b MidiEvent) int {
		switch {
		case a.Frame < b.Frame:
			return -1
		case a.Frame > b.Frame:
			return 1
		}

		return 0
	})
}
