package engine_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/engine"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/signal"
	"github.com/cwbudde/algo-garden/internal/testutil"
)

func testConfig() core.ProcessorConfig {
	return core.ApplyProcessorOptions(
		core.WithSampleRate(48000),
		core.WithBlockSize(128),
		core.WithChannels(2),
	)
}

func id(n node.Node) uuid.UUID { return n.Descriptor().ID }

func connect(t *testing.T, g *graph.Graph, src node.Node, srcPort string, dst node.Node, dstPort string) {
	t.Helper()

	_, err := g.Connect(id(src), srcPort, id(dst), dstPort)
	require.NoError(t, err)
}

// failingNode returns a non-skip error every tick.
type failingNode struct {
	desc node.Descriptor
}

func (f *failingNode) Descriptor() *node.Descriptor { return &f.desc }

func (f *failingNode) Process(_ *node.ProcessContext, _, outputs []signal.Signal) error {
	out := outputs[0].(*signal.AudioBuffer)
	for i := range out.Samples {
		out.Samples[i] = 1
	}

	return errors.New("broken")
}

func (f *failingNode) Reset() {}

func TestSineThroughGainToSink(t *testing.T) {
	g := graph.New()
	sine := node.NewSine("osc", 440, 0.8)
	gain := node.NewGain("vol", 0.5)
	sink := node.NewSink("out")

	g.AddNode(sink)
	g.AddNode(gain)
	g.AddNode(sine)

	connect(t, g, sine, "out", gain, "in")
	connect(t, g, gain, "out", sink, "in")

	e := engine.New(g, testConfig())
	require.NoError(t, e.Run(20))

	assert.InDelta(t, 0.4, sink.Peak(), 0.01)
	assert.EqualValues(t, 20, sink.Blocks())

	st := e.Stats()
	assert.EqualValues(t, 20, st.Ticks)
	assert.EqualValues(t, 20*128, st.PositionSamples)
	assert.Zero(t, st.Skipped)
	assert.Equal(t, 3, st.Nodes)
}

func TestEdgeGainAndActiveFlag(t *testing.T) {
	g := graph.New()
	sine := node.NewSine("osc", 1000, 1)
	sink := node.NewSink("out")
	g.AddNode(sine)
	g.AddNode(sink)

	_, err := g.ConnectEdge(id(sine), id(sink),
		graph.Edge{SourcePort: "out", DestPort: "in", Gain: 0.25, Active: true})
	require.NoError(t, err)

	e := engine.New(g, testConfig())
	require.NoError(t, e.Run(4))
	assert.InDelta(t, 0.25, sink.Peak(), 0.01)

	require.NoError(t, g.SetEdgeActive(id(sine), id(sink), false))
	sink.Reset()
	require.NoError(t, e.Run(4))
	assert.Zero(t, sink.Peak(), "inactive edges deliver silence")

	require.NoError(t, g.SetEdgeActive(id(sine), id(sink), true))
	require.NoError(t, g.SetEdgeGain(id(sine), id(sink), 2))
	require.NoError(t, e.Run(4))
	assert.InDelta(t, 2.0, sink.Peak(), 0.02)
}

func TestFanInSumsSources(t *testing.T) {
	g := graph.New()
	a := node.NewSine("a", 500, 0.5)
	b := node.NewSine("b", 500, 0.25)
	sink := node.NewSink("out")

	for _, n := range []node.Node{a, b, sink} {
		g.AddNode(n)
	}

	connect(t, g, a, "out", sink, "in")
	connect(t, g, b, "out", sink, "in")

	e := engine.New(g, testConfig())
	require.NoError(t, e.Run(8))

	// Both oscillators are in phase, so the mix peaks at the summed amplitude.
	assert.InDelta(t, 0.75, sink.Peak(), 0.01)
}

func TestSkippedAndFailedNodesProduceSilence(t *testing.T) {
	g := graph.New()
	bad := &failingNode{desc: node.NewDescriptor("bad", "test.bad", nil,
		[]node.Port{node.AudioPort("out")})}
	sink := node.NewSink("sink")
	hw := node.NewExternalOutputNode("hw", 2, 128)

	for _, n := range []node.Node{bad, sink, hw} {
		g.AddNode(n)
	}

	connect(t, g, bad, "out", sink, "in")
	connect(t, g, bad, "out", hw, "in")

	e := engine.New(g, testConfig())
	require.NoError(t, e.Run(3))

	st := e.Stats()
	assert.EqualValues(t, 3, st.Failed)
	assert.EqualValues(t, 3, st.Skipped, "inactive hardware output skips")
	assert.Zero(t, sink.Peak())
	assert.EqualValues(t, 3, sink.Blocks(), "downstream nodes keep running")
	assert.Zero(t, hw.RingBuffer().Available())
}

func TestHardwareBridgeRoundTrip(t *testing.T) {
	cfg := testConfig()
	g := graph.New()

	mic := node.NewExternalInputNode("mic", cfg.Channels, cfg.BlockSize)
	speaker := node.NewExternalOutputNode("speaker", cfg.Channels, cfg.BlockSize)
	g.AddNode(mic)
	g.AddNode(speaker)
	connect(t, g, mic, "out", speaker, "in")

	mic.SetActive(true)
	speaker.SetActive(true)

	block := testutil.Noise(5, 1, cfg.BlockSize*cfg.Channels)
	mic.RingBuffer().Write(block)

	e := engine.New(g, cfg)
	require.NoError(t, e.Tick())

	got := make([]float64, len(block))
	require.Equal(t, len(block), speaker.RingBuffer().Read(got))
	testutil.RequireSamplesNear(t, got, block, 0)
}

func TestMidiMergeIsSorted(t *testing.T) {
	g := graph.New()
	keysA := node.NewMidiInputNode("a")
	keysB := node.NewMidiInputNode("b")
	synth := node.NewMidiOutputNode("synth")

	for _, n := range []node.Node{keysA, keysB, synth} {
		g.AddNode(n)
	}

	connect(t, g, keysA, "out", synth, "in")
	connect(t, g, keysB, "out", synth, "in")

	for _, n := range []*node.MidiInputNode{keysA, keysB} {
		n.SetActive(true)
	}

	synth.SetActive(true)

	keysA.PushEvent(signal.MidiEvent{Frame: 50, Message: signal.NoteOnMessage(0, 60, 100)})
	keysA.PushEvent(signal.MidiEvent{Frame: 5, Message: signal.NoteOnMessage(0, 62, 100)})
	keysB.PushEvent(signal.MidiEvent{Frame: 20, Message: signal.NoteOnMessage(1, 64, 100)})

	e := engine.New(g, testConfig())
	require.NoError(t, e.Tick())

	events := synth.EventQueue().Snapshot()
	assert.Equal(t, []uint32{5, 20, 50}, testutil.Frames(events))
}

func TestPlanFollowsGraphEdits(t *testing.T) {
	g := graph.New()
	sine := node.NewSine("osc", 1000, 1)
	sink := node.NewSink("out")
	g.AddNode(sine)
	g.AddNode(sink)
	connect(t, g, sine, "out", sink, "in")

	e := engine.New(g, testConfig())
	require.NoError(t, e.Tick())
	assert.Equal(t, 2, e.Stats().Nodes)

	_, err := g.InsertBetween(node.NewGain("trim", 0.1), id(sine), id(sink))
	require.NoError(t, err)

	sink.Reset()
	require.NoError(t, e.Run(4))
	assert.Equal(t, 3, e.Stats().Nodes)
	assert.InDelta(t, 0.1, sink.Peak(), 0.005)

	buf, err := e.InputBuffer(id(sink), "in")
	require.NoError(t, err)
	assert.Len(t, buf.(*signal.AudioBuffer).Samples, 256)

	_, err = e.OutputBuffer(id(sink), "out")
	require.ErrorIs(t, err, engine.ErrNoBuffer)

	_, err = e.OutputBuffer(uuid.New(), "out")
	require.ErrorIs(t, err, engine.ErrNoBuffer)
}

func TestResetRewindsTransport(t *testing.T) {
	g := graph.New()
	sine := node.NewSine("osc", 1000, 1)
	g.AddNode(sine)

	e := engine.New(g, testConfig())
	require.NoError(t, e.Run(3))

	first, err := e.OutputBuffer(id(sine), "out")
	require.NoError(t, err)

	e.Reset()
	assert.Zero(t, e.Stats().PositionSamples)
	assert.Zero(t, e.Context().PositionBeats)
	assert.EqualValues(t, 3, e.Stats().Ticks)

	require.NoError(t, e.Tick())
	assert.Zero(t, first.(*signal.AudioBuffer).Samples[0], "oscillator restarts at phase zero")
	assert.NotZero(t, first.(*signal.AudioBuffer).Samples[2])
}
