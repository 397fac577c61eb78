package node

import (
	"sync/atomic"

	"github.com/cwbudde/algo-garden/dsp/eventqueue"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

const (
	TypeMidiInput  = "external.midi_input"
	TypeMidiOutput = "external.midi_output"
)

// MidiInputNode delivers MIDI events pushed by a hardware callback to the
// graph.
type MidiInputNode struct {
	descriptor Descriptor
	queue      atomic.Pointer[eventqueue.Queue]
	active     atomic.Bool
}

// NewMidiInputNode returns an inactive MIDI input with output port "out".
func NewMidiInputNode(name string) *MidiInputNode {
	n := &MidiInputNode{
		descriptor: bridgeDescriptor(name, TypeMidiInput, nil, []Port{MidiPort("out")}, 0),
	}
	n.queue.Store(eventqueue.New(eventqueue.DefaultCapacity))

	return n
}

func (n *MidiInputNode) Descriptor() *Descriptor { return &n.descriptor }

// EventQueue returns the queue the hardware callback pushes into.
func (n *MidiInputNode) EventQueue() *eventqueue.Queue { return n.queue.Load() }

// SetEventQueue swaps in a queue shared with a device.
func (n *MidiInputNode) SetEventQueue(q *eventqueue.Queue) {
	if q != nil {
		n.queue.Store(q)
	}
}

// PushEvent enqueues ev without blocking. It reports false when the event was
// dropped because the queue was locked or full.
func (n *MidiInputNode) PushEvent(ev signal.MidiEvent) bool {
	return n.queue.Load().TryPush(ev)
}

func (n *MidiInputNode) SetActive(active bool) { n.active.Store(active) }
func (n *MidiInputNode) IsActive() bool        { return n.active.Load() }

// Process drains pending events into the output sorted by frame. Under
// contention the output stays empty and the events wait for the next tick.
func (n *MidiInputNode) Process(_ *ProcessContext, _, outputs []signal.Signal) error {
	if !n.IsActive() {
		return errMidiInInactive
	}

	if len(outputs) == 0 {
		return errNoMidiOutput
	}

	out, ok := outputs[0].(*signal.MidiBuffer)
	if !ok {
		return errNoMidiOutput
	}

	out.Clear()

	if n.queue.Load().TryDrain(out) {
		signal.SortByFrame(out.Events)
	}

	return nil
}

// Reset discards pending events.
func (n *MidiInputNode) Reset() { n.queue.Load().Clear() }

// MidiOutputNode publishes each tick's MIDI input for a hardware callback to
// drain.
type MidiOutputNode struct {
	descriptor Descriptor
	queue      atomic.Pointer[eventqueue.Queue]
	active     atomic.Bool
}

// NewMidiOutputNode returns an inactive MIDI output with input port "in".
func NewMidiOutputNode(name string) *MidiOutputNode {
	n := &MidiOutputNode{
		descriptor: bridgeDescriptor(name, TypeMidiOutput, []Port{MidiPort("in")}, nil, 0),
	}
	n.queue.Store(eventqueue.New(eventqueue.DefaultCapacity))

	return n
}

func (n *MidiOutputNode) Descriptor() *Descriptor { return &n.descriptor }

// EventQueue returns the queue the hardware callback drains.
func (n *MidiOutputNode) EventQueue() *eventqueue.Queue { return n.queue.Load() }

// SetEventQueue swaps in a queue shared with a device.
func (n *MidiOutputNode) SetEventQueue(q *eventqueue.Queue) {
	if q != nil {
		n.queue.Store(q)
	}
}

func (n *MidiOutputNode) SetActive(active bool) { n.active.Store(active) }
func (n *MidiOutputNode) IsActive() bool        { return n.active.Load() }

// Process replaces the outgoing queue with this tick's events. If the queue
// is locked by the hardware side the tick's events are dropped.
func (n *MidiOutputNode) Process(_ *ProcessContext, inputs, _ []signal.Signal) error {
	if !n.IsActive() {
		return errMidiOutInactive
	}

	if len(inputs) == 0 {
		return errNoMidiInput
	}

	in, ok := inputs[0].(*signal.MidiBuffer)
	if !ok {
		return errNoMidiInput
	}

	n.queue.Load().TryReplace(in.Events)

	return nil
}

// Reset discards queued events.
func (n *MidiOutputNode) Reset() { n.queue.Load().Clear() }
