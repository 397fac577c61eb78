package patch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/graph"
	"github.com/cwbudde/algo-garden/dsp/node"
	"github.com/cwbudde/algo-garden/internal/patch"
)

const chain = `
nodes:
  - name: osc
    type: source.sine
    params: {frequency: 220, amplitude: 0.5}
  - name: trim
    type: util.gain
    params: {gain: 0.5}
  - name: speakers
    type: external.output
    params: {device: hw0, channels: 2, buffer_frames: 128}
  - name: meter
    type: sink.null
  - name: pad
    type: util.gain
    params: {gain_db: -6.0206}
  - name: tone
    type: util.filter
    params: {mode: highpass, cutoff: 80}
connections:
  - from: osc.out
    to: trim.in
  - from: trim
    to: speakers
    gain: 0.8
  - from: trim.out
    to: meter.in
    active: false
`

func processor() core.ProcessorConfig {
	return core.ApplyProcessorOptions(core.WithSampleRate(48000), core.WithBlockSize(64))
}

func build(t *testing.T, src string) *patch.Built {
	t.Helper()

	p, err := patch.Parse([]byte(src), ".yaml")
	require.NoError(t, err)

	built, err := patch.NewBuilder(nil, processor()).Build(p)
	require.NoError(t, err)

	return built
}

func TestBuildChain(t *testing.T) {
	built := build(t, chain)
	g := built.Graph

	assert.Equal(t, 6, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())

	osc, ok := built.Node("osc")
	require.True(t, ok)
	assert.InDelta(t, 220, osc.(*node.Sine).Frequency(), 1e-9)

	trim, _ := built.Node("trim")
	assert.InDelta(t, 0.5, trim.(*node.Gain).Gain(), 1e-9)

	pad, _ := built.Node("pad")
	assert.InDelta(t, 0.5, pad.(*node.Gain).Gain(), 1e-4)

	tone, _ := built.Node("tone")
	assert.Equal(t, node.Highpass, tone.(*node.Filter).Mode())
	assert.InDelta(t, 80, tone.(*node.Filter).Cutoff(), 1e-9)

	speakers, _ := built.Node("speakers")
	assert.Equal(t, node.TypeExternalOutput, speakers.Descriptor().TypeID)
	assert.Equal(t, "hw0", built.Specs["speakers"].Device())
	assert.Equal(t, "meter", built.Specs["meter"].Device())
	assert.EqualValues(t, 128, speakers.Descriptor().LatencySamples)

	idx, _ := g.IndexOf(built.IDs["trim"])
	out := g.OutgoingEdges(idx)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.8, out[0].Edge.Gain, 1e-9)
	assert.True(t, out[0].Edge.Active)
	assert.False(t, out[1].Edge.Active)

	path, ok := g.SignalPath(built.IDs["osc"], built.IDs["speakers"])
	require.True(t, ok)
	assert.Len(t, path, 3)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "unknown type",
			src:  "nodes: [{name: a, type: fx.reverb}]",
			want: patch.ErrUnknownType,
		},
		{
			name: "typo in params",
			src:  "nodes: [{name: a, type: util.gain, params: {gian: 2}}]",
			want: patch.ErrBadParams,
		},
		{
			name: "frequency above nyquist",
			src:  "nodes: [{name: a, type: source.sine, params: {frequency: 30000}}]",
			want: patch.ErrBadParams,
		},
		{
			name: "unknown filter mode",
			src:  "nodes: [{name: a, type: util.filter, params: {mode: notch, cutoff: 500}}]",
			want: patch.ErrBadParams,
		},
		{
			name: "filter without cutoff",
			src:  "nodes: [{name: a, type: util.filter}]",
			want: patch.ErrBadParams,
		},
		{
			name: "duplicate name",
			src:  "nodes: [{name: a, type: sink.null}, {name: a, type: sink.null}]",
			want: patch.ErrDuplicateName,
		},
		{
			name: "bridge channels differ from engine",
			src:  "nodes: [{name: a, type: external.input, params: {channels: 4}}]",
			want: patch.ErrBadParams,
		},
		{
			name: "bridge buffer below block size",
			src:  "nodes: [{name: a, type: external.output, params: {buffer_frames: 16}}]",
			want: patch.ErrBadParams,
		},
		{
			name: "dot in node name",
			src:  "nodes: [{name: osc.a, type: source.sine}]",
			want: patch.ErrBadEndpoint,
		},
		{
			name: "dangling endpoint",
			src:  "nodes: [{name: a, type: source.sine}]\nconnections: [{from: a.out, to: b.in}]",
			want: patch.ErrBadEndpoint,
		},
		{
			name: "missing port",
			src:  "nodes: [{name: a, type: source.sine}, {name: b, type: sink.null}]\nconnections: [{from: a.left, to: b.in}]",
			want: graph.ErrPortNotFound,
		},
		{
			name: "type mismatch",
			src:  "nodes: [{name: a, type: source.sine}, {name: b, type: external.midi_output}]\nconnections: [{from: a, to: b}]",
			want: graph.ErrTypeMismatch,
		},
		{
			name: "cycle",
			src: `nodes: [{name: a, type: util.gain}, {name: b, type: util.gain}]
connections: [{from: a, to: b}, {from: b, to: a}]`,
			want: graph.ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := patch.Parse([]byte(tt.src), ".yaml")
			require.NoError(t, err)

			_, err = patch.NewBuilder(nil, processor()).Build(p)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApplyExtendsBuild(t *testing.T) {
	built := build(t, chain)
	b := patch.NewBuilder(nil, processor())

	extra, err := patch.Parse([]byte(`{
		"nodes": [{"name": "keys", "type": "external.midi_input"}, {"name": "synth", "type": "external.midi_output"}],
		"connections": [{"from": "keys", "to": "synth"}]
	}`), ".json")
	require.NoError(t, err)

	require.NoError(t, b.Apply(built, extra))
	assert.Equal(t, 8, built.Graph.NodeCount())
	assert.Len(t, built.Graph.FindByType("external.midi"), 2)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(chain), 0o600))

	p, err := patch.Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 6)
	assert.Len(t, p.Connections, 3)

	_, err = patch.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := patch.NewRegistry()
	factory := func(ctx patch.Context) (node.Node, error) { return node.NewSink(ctx.Name), nil }

	require.NoError(t, r.Register("sink.custom", factory))
	require.Error(t, r.Register("sink.custom", factory))
	require.Error(t, r.Register("", factory))
	require.Error(t, r.Register("x", nil))
	assert.NotNil(t, r.Lookup("sink.custom"))
	assert.Nil(t, r.Lookup("sink.other"))
	assert.Panics(t, func() { r.MustRegister("sink.custom", factory) })

	assert.Len(t, patch.DefaultRegistry().Types(), 9)
}
