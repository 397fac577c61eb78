package patch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/dsp/node"
)

type bridgeParams struct {
	Device       string `mapstructure:"device"`
	Channels     int    `mapstructure:"channels"`
	BufferFrames int    `mapstructure:"buffer_frames"`
}

type midiParams struct {
	Device string `mapstructure:"device"`
}

type gainParams struct {
	Gain   float64  `mapstructure:"gain"`
	GainDB *float64 `mapstructure:"gain_db"`
}

type filterParams struct {
	Mode   string  `mapstructure:"mode"`
	Cutoff float64 `mapstructure:"cutoff"`
	Q      float64 `mapstructure:"q"`
}

type sineParams struct {
	Frequency float64 `mapstructure:"frequency"`
	Amplitude float64 `mapstructure:"amplitude"`
}

func (c Context) bridge() (bridgeParams, error) {
	p := bridgeParams{
		Channels:     c.Processor.Channels,
		BufferFrames: c.Processor.BlockSize,
	}

	if err := c.Decode(&p); err != nil {
		return p, err
	}

	if p.Channels != c.Processor.Channels {
		return p, fmt.Errorf("%w: node %q: channels %d, engine runs %d",
			ErrBadParams, c.Name, p.Channels, c.Processor.Channels)
	}

	// A ring shorter than one block drops part of every tick.
	if p.BufferFrames < c.Processor.BlockSize {
		return p, fmt.Errorf("%w: node %q: buffer_frames %d below block size %d",
			ErrBadParams, c.Name, p.BufferFrames, c.Processor.BlockSize)
	}

	return p, nil
}

// DefaultRegistry returns a registry with the built-in node types.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(node.TypeExternalOutput, func(ctx Context) (node.Node, error) {
		p, err := ctx.bridge()
		if err != nil {
			return nil, err
		}

		return node.NewExternalOutputNode(ctx.Name, p.Channels, p.BufferFrames), nil
	})
	r.MustRegister(node.TypeExternalInput, func(ctx Context) (node.Node, error) {
		p, err := ctx.bridge()
		if err != nil {
			return nil, err
		}

		return node.NewExternalInputNode(ctx.Name, p.Channels, p.BufferFrames), nil
	})
	r.MustRegister(node.TypeMidiInput, func(ctx Context) (node.Node, error) {
		if err := ctx.Decode(&midiParams{}); err != nil {
			return nil, err
		}

		return node.NewMidiInputNode(ctx.Name), nil
	})
	r.MustRegister(node.TypeMidiOutput, func(ctx Context) (node.Node, error) {
		if err := ctx.Decode(&midiParams{}); err != nil {
			return nil, err
		}

		return node.NewMidiOutputNode(ctx.Name), nil
	})
	r.MustRegister(node.TypePassthrough, func(ctx Context) (node.Node, error) {
		if err := ctx.Decode(&struct{}{}); err != nil {
			return nil, err
		}

		return node.NewPassthrough(ctx.Name), nil
	})
	r.MustRegister(node.TypeGain, func(ctx Context) (node.Node, error) {
		p := gainParams{Gain: 1}
		if err := ctx.Decode(&p); err != nil {
			return nil, err
		}

		if p.GainDB != nil {
			p.Gain = core.DBToLinear(*p.GainDB)
		}

		return node.NewGain(ctx.Name, p.Gain), nil
	})
	r.MustRegister(node.TypeFilter, func(ctx Context) (node.Node, error) {
		p := filterParams{Mode: string(node.Lowpass), Q: math.Sqrt2 / 2}
		if err := ctx.Decode(&p); err != nil {
			return nil, err
		}

		if p.Cutoff >= ctx.Processor.SampleRate/2 {
			return nil, fmt.Errorf("%w: node %q: cutoff %v outside (0, nyquist)", ErrBadParams, ctx.Name, p.Cutoff)
		}

		f, err := node.NewFilter(ctx.Name, node.FilterMode(p.Mode), p.Cutoff, p.Q, ctx.Processor.Channels)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %w", ErrBadParams, ctx.Name, err)
		}

		return f, nil
	})
	r.MustRegister(node.TypeSine, func(ctx Context) (node.Node, error) {
		p := sineParams{Frequency: 440, Amplitude: 1}
		if err := ctx.Decode(&p); err != nil {
			return nil, err
		}

		if p.Frequency <= 0 || p.Frequency >= ctx.Processor.SampleRate/2 {
			return nil, fmt.Errorf("%w: node %q: frequency %v outside (0, nyquist)", ErrBadParams, ctx.Name, p.Frequency)
		}

		return node.NewSine(ctx.Name, p.Frequency, p.Amplitude), nil
	})
	r.MustRegister(node.TypeNullSink, func(ctx Context) (node.Node, error) {
		if err := ctx.Decode(&struct{}{}); err != nil {
			return nil, err
		}

		return node.NewSink(ctx.Name), nil
	})

	return r
}
