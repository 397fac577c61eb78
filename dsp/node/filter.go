package node

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-garden/dsp/signal"
)

const TypeFilter = "util.filter"

// FilterMode selects the response of a Filter node.
type FilterMode string

const (
	Lowpass  FilterMode = "lowpass"
	Highpass FilterMode = "highpass"
)

// ErrFilterParams is returned for an unknown mode or a non-positive Q.
var ErrFilterParams = errors.New("invalid filter parameters")

var (
	errCutoffAboveNyquist = &SkipError{Reason: "cutoff above nyquist"}
	errFilterChannels     = &SkipError{Reason: "channel count differs from filter"}
)

// biquad coefficients with a0 normalized to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// rbj returns cookbook coefficients for a second-order low or high pass.
func rbj(mode FilterMode, cutoff, q, sampleRate float64) biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	alpha := sinW / (2 * q)
	a0 := 1 + alpha

	var b0, b1 float64
	if mode == Highpass {
		b0 = (1 + cosW) / 2
		b1 = -(1 + cosW)
	} else {
		b0 = (1 - cosW) / 2
		b1 = 1 - cosW
	}

	return biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b0 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// Filter is a second-order low or high pass applied to every channel.
type Filter struct {
	descriptor Descriptor
	mode       FilterMode
	cutoff     float64
	q          float64

	coeffs     biquad
	designedAt float64
	channels   int
	// Two transposed direct form II state words per channel.
	state []float64
}

// NewFilter returns a filter for interleaved audio with the given channel
// count, with audio ports "in" and "out".
func NewFilter(name string, mode FilterMode, cutoff, q float64, channels int) (*Filter, error) {
	if mode != Lowpass && mode != Highpass {
		return nil, fmt.Errorf("%w: mode %q", ErrFilterParams, mode)
	}

	if q <= 0 || cutoff <= 0 {
		return nil, fmt.Errorf("%w: cutoff %v, q %v", ErrFilterParams, cutoff, q)
	}

	return &Filter{
		descriptor: plainDescriptor(name, TypeFilter,
			[]Port{AudioPort("in")}, []Port{AudioPort("out")}),
		mode:     mode,
		cutoff:   cutoff,
		q:        q,
		channels: max(channels, 1),
		state:    make([]float64, 2*max(channels, 1)),
	}, nil
}

func (f *Filter) Descriptor() *Descriptor { return &f.descriptor }

// Mode returns the filter response.
func (f *Filter) Mode() FilterMode { return f.mode }

// Cutoff returns the corner frequency in Hz.
func (f *Filter) Cutoff() float64 { return f.cutoff }

func (f *Filter) Process(ctx *ProcessContext, inputs, outputs []signal.Signal) error {
	in, out, ok := audioPair(inputs, outputs)
	if !ok {
		return errAudioMismatch
	}

	if ctx.SampleRate <= 0 || f.cutoff >= ctx.SampleRate/2 {
		return errCutoffAboveNyquist
	}

	channels := max(out.Channels, 1)
	if channels != f.channels {
		return errFilterChannels
	}

	if f.designedAt != ctx.SampleRate {
		f.coeffs = rbj(f.mode, f.cutoff, f.q, ctx.SampleRate)
		f.designedAt = ctx.SampleRate
	}

	c := f.coeffs

	for i := 0; i+channels <= len(in.Samples); i += channels {
		for ch := range channels {
			d := f.state[2*ch : 2*ch+2]
			x := in.Samples[i+ch]
			y := c.b0*x + d[0]
			d[0] = c.b1*x - c.a1*y + d[1]
			d[1] = c.b2*x - c.a2*y
			out.Samples[i+ch] = y
		}
	}

	return nil
}

// Reset clears the filter memory.
func (f *Filter) Reset() { clear(f.state) }
