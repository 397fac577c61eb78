package node_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/dsp/signal"
)

func testContext(frames int) *node.ProcessContext {
	return node.NewProcessContext(core.ApplyProcessorOptions(
		core.WithSampleRate(48000),
		core.WithBlockSize(frames),
		core.WithChannels(2),
	))
}

func TestDescriptorPorts(t *testing.T) {
	d := node.NewDescriptor("fx", "util.fx",
		[]node.Port{node.AudioPort("in"), node.MidiPort("notes")},
		[]node.Port{node.AudioPort("out")})

	assert.NotEqual(t, d.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, 1, d.Input("notes"))
	assert.Equal(t, 0, d.Output("out"))
	assert.Equal(t, -1, d.Input("missing"))
	assert.Equal(t, -1, d.Output("in"))

	other := node.NewDescriptor("fx", "util.fx", nil, nil)
	assert.NotEqual(t, d.ID, other.ID)
	assert.NotNil(t, other.Inputs)
	assert.Empty(t, other.Outputs)
}

func TestCapabilitiesURIs(t *testing.T) {
	assert.Equal(t, []string{"audio:realtime", "audio:offline"},
		node.Capabilities{Realtime: true, Offline: true}.URIs())
	assert.Equal(t, []string{"audio:realtime"}, node.Capabilities{Realtime: true}.URIs())
	assert.Empty(t, node.Capabilities{}.URIs())
}

func TestProcessContextAdvance(t *testing.T) {
	ctx := node.NewProcessContext(core.ApplyProcessorOptions(
		core.WithSampleRate(48000),
		core.WithBlockSize(480),
		core.WithTempo(120),
		core.WithRealtime(true),
	))

	assert.Equal(t, node.Realtime, ctx.Mode)
	assert.InDelta(t, 10_000_000, float64(ctx.DeadlineNanos), 1)

	ctx.Advance()
	ctx.Advance()

	assert.EqualValues(t, 960, ctx.PositionSamples)
	assert.InDelta(t, 0.04, ctx.PositionBeats, 1e-12)
}

func TestSkipError(t *testing.T) {
	err := node.Skip("nothing to do")
	assert.True(t, node.IsSkipped(err))
	assert.True(t, node.IsSkipped(fmt.Errorf("tick 3: %w", err)))
	assert.False(t, node.IsSkipped(errors.New("boom")))
	assert.False(t, node.IsSkipped(nil))
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestExternalOutputNode(t *testing.T) {
	n := node.NewExternalOutputNode("main", 2, 4)
	ring := n.RingBuffer()
	require.Equal(t, 32, ring.Capacity())

	d := n.Descriptor()
	assert.Equal(t, node.TypeExternalOutput, d.TypeID)
	assert.Equal(t, []node.Port{node.AudioPort("in")}, d.Inputs)
	assert.Empty(t, d.Outputs)
	assert.EqualValues(t, 4, d.LatencySamples)
	assert.True(t, d.Capabilities.Realtime)
	assert.False(t, d.Capabilities.Offline)

	in := signal.NewAudioBuffer(4, 2)
	for i := range in.Samples {
		in.Samples[i] = float64(i + 1)
	}

	ctx := testContext(4)

	t.Run("inactive skips and leaves ring unchanged", func(t *testing.T) {
		err := n.Process(ctx, []signal.Signal{in}, nil)
		assert.True(t, node.IsSkipped(err))
		assert.Equal(t, 0, ring.Available())
	})

	n.SetActive(true)
	require.True(t, n.IsActive())

	t.Run("active writes the whole block", func(t *testing.T) {
		require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
		assert.Equal(t, 8, ring.Available())

		out := make([]float64, 8)
		ring.Read(out)
		assert.Equal(t, in.Samples, out)
	})

	t.Run("write is capped by space", func(t *testing.T) {
		for range 5 {
			require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
		}

		assert.Equal(t, 32, ring.Available())
		assert.EqualValues(t, 8, ring.Overruns())
	})

	t.Run("wrong input type skips", func(t *testing.T) {
		err := n.Process(ctx, []signal.Signal{signal.NewMidiBuffer(4)}, nil)
		assert.True(t, node.IsSkipped(err))

		err = n.Process(ctx, nil, nil)
		assert.True(t, node.IsSkipped(err))
	})

	t.Run("reset drops queued audio at the next hardware read", func(t *testing.T) {
		n.Reset()

		out := make([]float64, 32)
		assert.Zero(t, ring.Read(out))
		assert.EqualValues(t, 32, ring.Discarded())
		assert.Equal(t, 0, ring.Available())
		assert.Equal(t, 32, ring.Space())

		require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
		assert.Equal(t, 8, ring.Read(out))
		assert.Equal(t, in.Samples, out[:8])
	})
}

func TestExternalInputNode(t *testing.T) {
	n := node.NewExternalInputNode("mic", 2, 4)
	ctx := testContext(4)
	out := signal.NewAudioBuffer(4, 2)

	assert.True(t, node.IsSkipped(n.Process(ctx, nil, []signal.Signal{out})))

	n.SetActive(true)

	n.RingBuffer().Write([]float64{1, 2, 3, 4, 5})

	for i := range out.Samples {
		out.Samples[i] = 9
	}

	require.NoError(t, n.Process(ctx, nil, []signal.Signal{out}))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 0, 0, 0}, out.Samples)
	assert.EqualValues(t, 3, n.RingBuffer().Underruns())

	small := signal.NewAudioBuffer(2, 2)
	assert.True(t, node.IsSkipped(n.Process(ctx, nil, []signal.Signal{small})))
	assert.True(t, node.IsSkipped(n.Process(ctx, nil, []signal.Signal{signal.NewMidiBuffer(1)})))

	n.RingBuffer().Write([]float64{7, 7, 7})
	n.Reset()
	assert.Zero(t, n.RingBuffer().Available())
	assert.EqualValues(t, 3, n.RingBuffer().Discarded())
}

func TestSetRingBufferSharesRing(t *testing.T) {
	out := node.NewExternalOutputNode("a", 1, 8)
	in := node.NewExternalInputNode("b", 1, 8)

	in.SetRingBuffer(out.RingBuffer())
	in.SetRingBuffer(nil)
	require.Same(t, out.RingBuffer(), in.RingBuffer())

	out.SetActive(true)
	in.SetActive(true)

	ctx := testContext(8)
	src := signal.NewAudioBuffer(8, 1)

	for i := range src.Samples {
		src.Samples[i] = float64(i)
	}

	dst := signal.NewAudioBuffer(8, 1)

	require.NoError(t, out.Process(ctx, []signal.Signal{src}, nil))
	require.NoError(t, in.Process(ctx, nil, []signal.Signal{dst}))
	assert.Equal(t, src.Samples, dst.Samples)
}

func TestMidiInputNodeSortsByFrame(t *testing.T) {
	n := node.NewMidiInputNode("keys")
	assert.Equal(t, []node.Port{node.MidiPort("out")}, n.Descriptor().Outputs)
	assert.Zero(t, n.Descriptor().LatencySamples)

	for _, frame := range []uint32{40, 3, 17, 3, 0, 250} {
		require.True(t, n.PushEvent(signal.MidiEvent{
			Frame:   frame,
			Message: signal.NoteOnMessage(0, uint8(frame%128), 100),
		}))
	}

	out := signal.NewMidiBuffer(16)
	ctx := testContext(256)

	assert.True(t, node.IsSkipped(n.Process(ctx, nil, []signal.Signal{out})))
	assert.Equal(t, 6, n.EventQueue().Len())

	n.SetActive(true)
	require.NoError(t, n.Process(ctx, nil, []signal.Signal{out}))
	require.Len(t, out.Events, 6)

	for i := 1; i < len(out.Events); i++ {
		assert.LessOrEqual(t, out.Events[i-1].Frame, out.Events[i].Frame)
	}

	assert.Equal(t, 0, n.EventQueue().Len())

	// The next tick starts empty.
	require.NoError(t, n.Process(ctx, nil, []signal.Signal{out}))
	assert.Empty(t, out.Events)
}

func TestMidiInputNodeReset(t *testing.T) {
	n := node.NewMidiInputNode("keys")
	n.PushEvent(signal.MidiEvent{Message: signal.NoteOffMessage(1, 60)})
	n.Reset()
	assert.Equal(t, 0, n.EventQueue().Len())
}

func TestMidiOutputNodeReplacesQueue(t *testing.T) {
	n := node.NewMidiOutputNode("synth")
	n.SetActive(true)

	ctx := testContext(256)
	in := signal.NewMidiBuffer(4)
	in.Append(signal.MidiEvent{Frame: 1, Message: signal.NoteOnMessage(0, 60, 90)})
	in.Append(signal.MidiEvent{Frame: 9, Message: signal.NoteOffMessage(0, 60)})

	require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
	require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
	assert.Equal(t, in.Events, n.EventQueue().Snapshot())

	in.Clear()
	require.NoError(t, n.Process(ctx, []signal.Signal{in}, nil))
	assert.Equal(t, 0, n.EventQueue().Len())

	n.SetActive(false)
	assert.True(t, node.IsSkipped(n.Process(ctx, []signal.Signal{in}, nil)))
}

func TestBuiltinNodes(t *testing.T) {
	ctx := testContext(64)

	sine := node.NewSine("osc", 1000, 0.5)
	tone := signal.NewAudioBuffer(64, 2)
	require.NoError(t, sine.Process(ctx, nil, []signal.Signal{tone}))
	assert.Equal(t, tone.Samples[2], tone.Samples[3], "channels carry the same sample")
	assert.Zero(t, tone.Samples[0])

	gain := node.NewGain("half", 0.5)
	scaled := signal.NewAudioBuffer(64, 2)
	require.NoError(t, gain.Process(ctx, []signal.Signal{tone}, []signal.Signal{scaled}))

	for i := range tone.Samples {
		assert.InDelta(t, tone.Samples[i]*0.5, scaled.Samples[i], 1e-12)
	}

	gain.SetGain(2)
	assert.InDelta(t, 2.0, gain.Gain(), 0)

	pass := node.NewPassthrough("thru")
	copied := signal.NewAudioBuffer(64, 2)
	require.NoError(t, pass.Process(ctx, []signal.Signal{tone}, []signal.Signal{copied}))
	assert.Equal(t, tone.Samples, copied.Samples)

	mismatch := signal.NewAudioBuffer(32, 2)
	assert.True(t, node.IsSkipped(pass.Process(ctx, []signal.Signal{tone}, []signal.Signal{mismatch})))

	sink := node.NewSink("out")
	require.NoError(t, sink.Process(ctx, []signal.Signal{tone}, nil))
	assert.InDelta(t, 0.5, sink.Peak(), 0.01)
	assert.LessOrEqual(t, sink.Peak(), 0.5+1e-12)
	assert.EqualValues(t, 1, sink.Blocks())

	sink.Reset()
	sine.Reset()
	assert.Zero(t, sink.Peak())

	again := signal.NewAudioBuffer(64, 2)
	require.NoError(t, sine.Process(ctx, nil, []signal.Signal{again}))
	assert.Equal(t, tone.Samples, again.Samples)
	assert.False(t, math.IsNaN(again.Samples[10]))
}

func filteredPeak(t *testing.T, f *node.Filter, freq float64) float64 {
	t.Helper()

	ctx := testContext(64)
	osc := node.NewSine("osc", freq, 1)
	tone := signal.NewAudioBuffer(64, 2)
	out := signal.NewAudioBuffer(64, 2)

	var peak float64

	for block := range 60 {
		require.NoError(t, osc.Process(ctx, nil, []signal.Signal{tone}))
		require.NoError(t, f.Process(ctx, []signal.Signal{tone}, []signal.Signal{out}))

		if block < 30 {
			continue
		}

		for _, v := range out.Samples {
			peak = max(peak, math.Abs(v))
		}
	}

	f.Reset()

	return peak
}

func TestFilterResponse(t *testing.T) {
	lp, err := node.NewFilter("lp", node.Lowpass, 1000, math.Sqrt2/2, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, filteredPeak(t, lp, 100), 0.02)
	assert.Less(t, filteredPeak(t, lp, 10000), 0.02)

	hp, err := node.NewFilter("hp", node.Highpass, 1000, math.Sqrt2/2, 2)
	require.NoError(t, err)
	assert.Less(t, filteredPeak(t, hp, 100), 0.02)
	assert.InDelta(t, 1.0, filteredPeak(t, hp, 10000), 0.05)
}

func TestFilterRejectsBadParams(t *testing.T) {
	_, err := node.NewFilter("f", "bandpass", 1000, 1, 2)
	require.ErrorIs(t, err, node.ErrFilterParams)

	_, err = node.NewFilter("f", node.Lowpass, 1000, 0, 2)
	require.ErrorIs(t, err, node.ErrFilterParams)

	f, err := node.NewFilter("f", node.Lowpass, 30000, 1, 2)
	require.NoError(t, err)

	in := signal.NewAudioBuffer(64, 2)
	out := signal.NewAudioBuffer(64, 2)
	assert.True(t, node.IsSkipped(f.Process(testContext(64), []signal.Signal{in}, []signal.Signal{out})))
}

func TestFilterChannelMismatchSkips(t *testing.T) {
	f, err := node.NewFilter("f", node.Lowpass, 1000, 1, 1)
	require.NoError(t, err)

	in := signal.NewAudioBuffer(64, 2)
	out := signal.NewAudioBuffer(64, 2)
	assert.True(t, node.IsSkipped(f.Process(testContext(64), []signal.Signal{in}, []signal.Signal{out})))
}

func TestProcessDoesNotAllocate(t *testing.T) {
	ctx := testContext(64)
	audioIn := []signal.Signal{signal.NewAudioBuffer(64, 2)}
	audioOut := []signal.Signal{signal.NewAudioBuffer(64, 2)}
	midiIn := []signal.Signal{signal.NewMidiBuffer(16)}
	midiOut := []signal.Signal{signal.NewMidiBuffer(16)}

	lowpass, err := node.NewFilter("lp", node.Lowpass, 1000, 1, 2)
	require.NoError(t, err)

	aboveNyquist, err := node.NewFilter("hi", node.Highpass, 30000, 1, 2)
	require.NoError(t, err)

	speaker := node.NewExternalOutputNode("speaker", 2, 64)
	mic := node.NewExternalInputNode("mic", 2, 64)
	keys := node.NewMidiInputNode("keys")
	synth := node.NewMidiOutputNode("synth")

	tests := []struct {
		name    string
		node    node.Node
		inputs  []signal.Signal
		outputs []signal.Signal
		active  func(bool)
	}{
		{"passthrough", node.NewPassthrough("thru"), audioIn, audioOut, nil},
		{"gain", node.NewGain("vol", 0.5), audioIn, audioOut, nil},
		{"sine", node.NewSine("osc", 440, 1), nil, audioOut, nil},
		{"sink", node.NewSink("meter"), audioIn, nil, nil},
		{"filter", lowpass, audioIn, audioOut, nil},
		{"filter above nyquist", aboveNyquist, audioIn, audioOut, nil},
		{"external output", speaker, audioIn, nil, speaker.SetActive},
		{"external input", mic, nil, audioOut, mic.SetActive},
		{"midi input", keys, nil, midiOut, keys.SetActive},
		{"midi output", synth, midiIn, nil, synth.SetActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func() { _ = tt.node.Process(ctx, tt.inputs, tt.outputs) }

			if tt.active != nil {
				tt.active(false)
				assert.Zero(t, testing.AllocsPerRun(50, run), "inactive")
				tt.active(true)
			}

			assert.Zero(t, testing.AllocsPerRun(50, run))
		})
	}

	mismatch := []signal.Signal{signal.NewAudioBuffer(32, 2)}
	assert.Zero(t, testing.AllocsPerRun(50, func() { _ = lowpass.Process(ctx, audioIn, mismatch) }), "size mismatch")
}
