package garden

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-garden/dsp/eventqueue"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/ringbuf"
)

var (
	// ErrDeviceNotFound is returned for an unknown device ID or name.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDuplicateDevice is returned when a device name is already taken.
	ErrDuplicateDevice = errors.New("duplicate device name")
	// ErrWrongDirection is returned when a node is bound to a device of the
	// opposite direction or kind.
	ErrWrongDirection = errors.New("device direction mismatch")
)

// Direction tells whether a device feeds the graph or receives from it.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}

	return "output"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Kind separates audio devices from MIDI devices.
type Kind int

const (
	Audio Kind = iota
	Midi
)

func (k Kind) String() string {
	if k == Midi {
		return "midi"
	}

	return "audio"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Device describes one registered hardware endpoint.
type Device struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Direction Direction `json:"direction"`
	// Channels is zero for MIDI devices.
	Channels int `json:"channels,omitempty"`
	// PortPattern selects the hardware ports an input captures from.
	PortPattern string `json:"port_pattern,omitempty"`
	Connected   bool   `json:"connected"`
}

type activatable interface {
	SetActive(bool)
}

type device struct {
	Device

	ring  *ringbuf.RingBuffer
	queue *eventqueue.Queue
	nodes []activatable
}

// Devices tracks hardware endpoints and the rings and queues they share with
// bridging nodes. A hardware adapter produces into an input device's ring
// (or MIDI queue) and consumes from an output device's ring.
type Devices struct {
	mu           sync.RWMutex
	bufferFrames int
	byID         map[uuid.UUID]*device
	byName       map[string]*device
}

// NewDevices returns an empty manager whose rings hold four blocks of
// bufferFrames frames.
func NewDevices(bufferFrames int) *Devices {
	return &Devices{
		bufferFrames: max(bufferFrames, 1),
		byID:         make(map[uuid.UUID]*device),
		byName:       make(map[string]*device),
	}
}

// BufferFrames returns the block size rings are sized for.
func (m *Devices) BufferFrames() int { return m.bufferFrames }

func (m *Devices) add(d *device) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byName[d.Name]; dup {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, d.Name)
	}

	d.ID = uuid.New()
	d.Connected = true
	m.byID[d.ID] = d
	m.byName[d.Name] = d

	return d.ID, nil
}

// CreateOutput registers an audio output with its own ring.
func (m *Devices) CreateOutput(name string, channels int) (uuid.UUID, error) {
	channels = max(channels, 1)

	return m.add(&device{
		Device: Device{Name: name, Kind: Audio, Direction: Output, Channels: channels},
		ring:   ringbuf.New(node.RingSize(channels, m.bufferFrames)),
	})
}

// CreateInput registers an audio input with its own ring.
func (m *Devices) CreateInput(name string, channels int) (uuid.UUID, error) {
	channels = max(channels, 1)

	return m.add(&device{
		Device: Device{Name: name, Kind: Audio, Direction: Input, Channels: channels},
		ring:   ringbuf.New(node.RingSize(channels, m.bufferFrames)),
	})
}

// RegisterMidi registers a MIDI device with its own event queue.
func (m *Devices) RegisterMidi(name string, dir Direction) (uuid.UUID, error) {
	return m.add(&device{
		Device: Device{Name: name, Kind: Midi, Direction: dir},
		queue:  eventqueue.New(eventqueue.DefaultCapacity),
	})
}

// ConnectInput records the hardware port pattern an audio input captures.
func (m *Devices) ConnectInput(id uuid.UUID, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if d.Kind != Audio || d.Direction != Input {
		return fmt.Errorf("%w: %s is not an audio input", ErrWrongDirection, d.Name)
	}

	d.PortPattern = pattern

	return nil
}

// SetConnected marks the device connected or disconnected and flips the
// active flag of every node bound to it.
func (m *Devices) SetConnected(id uuid.UUID, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	d.Connected = connected
	for _, n := range d.nodes {
		n.SetActive(connected)
	}

	return nil
}

// Get returns the device with the given ID.
func (m *Devices) Get(id uuid.UUID) (Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byID[id]
	if !ok {
		return Device{}, false
	}

	return d.Device, true
}

// Lookup returns the device with the given name.
func (m *Devices) Lookup(name string) (Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byName[name]
	if !ok {
		return Device{}, false
	}

	return d.Device, true
}

// List returns all devices sorted by name.
func (m *Devices) List() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Device, 0, len(m.byID))
	for _, d := range m.byID {
		out = append(out, d.Device)
	}

	slices.SortFunc(out, func(a, b Device) int { return strings.Compare(a.Name, b.Name) })

	return out
}

// Ring returns the ring of an audio device.
func (m *Devices) Ring(id uuid.UUID) (*ringbuf.RingBuffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byID[id]
	if !ok || d.ring == nil {
		return nil, fmt.Errorf("%w: audio device %s", ErrDeviceNotFound, id)
	}

	return d.ring, nil
}

// Queue returns the event queue of a MIDI device.
func (m *Devices) Queue(id uuid.UUID) (*eventqueue.Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byID[id]
	if !ok || d.queue == nil {
		return nil, fmt.Errorf("%w: midi device %s", ErrDeviceNotFound, id)
	}

	return d.queue, nil
}

func (m *Devices) lookupKind(id uuid.UUID, kind Kind, dir Direction) (*device, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if d.Kind != kind || d.Direction != dir {
		return nil, fmt.Errorf("%w: %s is a %s %s", ErrWrongDirection, d.Name, d.Kind, d.Direction)
	}

	return d, nil
}

// CreateOutputNode returns an output node sharing the device ring. The node
// is active while the device is connected.
func (m *Devices) CreateOutputNode(id uuid.UUID) (*node.ExternalOutputNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.lookupKind(id, Audio, Output)
	if err != nil {
		return nil, err
	}

	n := node.NewExternalOutputNode(d.Name, d.Channels, m.bufferFrames)
	m.attach(d, n)

	return n, nil
}

// CreateInputNode returns an input node sharing the device ring.
func (m *Devices) CreateInputNode(id uuid.UUID) (*node.ExternalInputNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.lookupKind(id, Audio, Input)
	if err != nil {
		return nil, err
	}

	n := node.NewExternalInputNode(d.Name, d.Channels, m.bufferFrames)
	m.attach(d, n)

	return n, nil
}

// CreateMidiInputNode returns a MIDI input node draining the device queue.
func (m *Devices) CreateMidiInputNode(id uuid.UUID) (*node.MidiInputNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.lookupKind(id, Midi, Input)
	if err != nil {
		return nil, err
	}

	n := node.NewMidiInputNode(d.Name)
	m.attach(d, n)

	return n, nil
}

// CreateMidiOutputNode returns a MIDI output node filling the device queue.
func (m *Devices) CreateMidiOutputNode(id uuid.UUID) (*node.MidiOutputNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.lookupKind(id, Midi, Output)
	if err != nil {
		return nil, err
	}

	n := node.NewMidiOutputNode(d.Name)
	m.attach(d, n)

	return n, nil
}

// Bind attaches an existing bridging node to the named device, creating the
// device when it does not exist yet. Non-bridging nodes are ignored and
// report false.
func (m *Devices) Bind(n node.Node, name string) (bool, error) {
	var (
		kind     Kind
		dir      Direction
		channels int
	)

	switch b := n.(type) {
	case *node.ExternalOutputNode:
		kind, dir, channels = Audio, Output, b.Channels()
	case *node.ExternalInputNode:
		kind, dir, channels = Audio, Input, b.Channels()
	case *node.MidiInputNode:
		kind, dir = Midi, Input
	case *node.MidiOutputNode:
		kind, dir = Midi, Output
	default:
		return false, nil
	}

	if _, ok := m.Lookup(name); !ok {
		var err error

		switch {
		case kind == Midi:
			_, err = m.RegisterMidi(name, dir)
		case dir == Input:
			_, err = m.CreateInput(name, channels)
		default:
			_, err = m.CreateOutput(name, channels)
		}

		if err != nil && !errors.Is(err, ErrDuplicateDevice) {
			return false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.byName[name]
	if d.Kind != kind || d.Direction != dir {
		return false, fmt.Errorf("%w: node %q cannot bind to %s %s %q",
			ErrWrongDirection, n.Descriptor().Name, d.Kind, d.Direction, name)
	}

	if kind == Audio && d.Channels != channels {
		return false, fmt.Errorf("%w: node %q has %d channels, device %q has %d",
			ErrWrongDirection, n.Descriptor().Name, channels, name, d.Channels)
	}

	m.attach(d, n.(activatable))

	return true, nil
}

// Release detaches every node bound to any device and deactivates it.
func (m *Devices) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.byID {
		for _, n := range d.nodes {
			n.SetActive(false)
		}

		d.nodes = nil
	}
}

func (m *Devices) attach(d *device, n activatable) {
	switch b := n.(type) {
	case *node.ExternalOutputNode:
		b.SetRingBuffer(d.ring)
	case *node.ExternalInputNode:
		b.SetRingBuffer(d.ring)
	case *node.MidiInputNode:
		b.SetEventQueue(d.queue)
	case *node.MidiOutputNode:
		b.SetEventQueue(d.queue)
	}

	d.nodes = append(d.nodes, n)
	n.SetActive(d.Connected)
}
