// Package probe measures rendered graph output: level statistics and the
// dominant frequency of a block of interleaved audio.
package probe

import (
	"errors"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-garden/dsp/core"
)

const defaultFFTSize = 4096

// ErrNoSignal is returned when there are no samples to analyze.
var ErrNoSignal = errors.New("probe: no samples")

// Config holds probe parameters.
type Config struct {
	SampleRate float64
	// FFTSize is rounded up to a power of two; zero picks one from the input.
	FFTSize  int
	Channels int
}

// Result holds the probe measurements.
type Result struct {
	Frames     int     `json:"frames"`
	Peak       float64 `json:"peak"`
	PeakDB     float64 `json:"peak_db"`
	RMS        float64 `json:"rms"`
	RMSDB      float64 `json:"rms_db"`
	PeakFreqHz float64 `json:"peak_freq_hz"`
	// PeakBinDB is the power of the strongest bin relative to full scale.
	PeakBinDB float64 `json:"peak_bin_db"`
}

// Analyze downmixes interleaved samples to mono, measures their level and
// locates the strongest non-DC spectral peak with a Hann window and
// parabolic interpolation.
func Analyze(samples []float64, cfg Config) (Result, error) {
	channels := max(cfg.Channels, 1)

	frames := len(samples) / channels
	if frames == 0 {
		return Result{}, ErrNoSignal
	}

	mono := make([]float64, frames)
	for f := range frames {
		var sum float64
		for c := range channels {
			sum += samples[f*channels+c]
		}

		mono[f] = sum / float64(channels)
	}

	res := Result{Frames: frames}

	var energy float64
	for _, v := range samples[:frames*channels] {
		res.Peak = max(res.Peak, math.Abs(v))
		energy += v * v
	}

	res.RMS = math.Sqrt(energy / float64(frames*channels))
	res.PeakDB = core.LinearToDB(res.Peak)
	res.RMSDB = core.LinearToDB(res.RMS)

	if cfg.SampleRate <= 0 || frames < 4 {
		return res, nil
	}

	freq, level, err := peakFrequency(mono, cfg.SampleRate, cfg.FFTSize)
	if err != nil {
		return Result{}, err
	}

	res.PeakFreqHz = freq
	res.PeakBinDB = level

	return res, nil
}

func peakFrequency(mono []float64, sampleRate float64, fftSize int) (float64, float64, error) {
	if fftSize <= 0 {
		fftSize = min(nextPowerOf2(len(mono)), defaultFFTSize)
	} else {
		fftSize = nextPowerOf2(fftSize)
	}

	n := min(len(mono), fftSize)
	in := make([]complex128, fftSize)

	var windowSum float64

	for i := range n {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		windowSum += w
		in[i] = complex(mono[i]*w, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return 0, 0, err
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return 0, 0, err
	}

	bins := fftSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)

	for k := range bins {
		re[k] = real(out[k])
		im[k] = imag(out[k])
	}

	power := make([]float64, bins)
	vecmath.Power(power, re, im)

	peak := 1
	for k := 2; k < bins; k++ {
		if power[k] > power[peak] {
			peak = k
		}
	}

	offset := 0.0
	if peak > 0 && peak < bins-1 {
		a, b, c := power[peak-1], power[peak], power[peak+1]
		if denom := a - 2*b + c; denom != 0 {
			offset = 0.5 * (a - c) / denom
		}
	}

	binHz := sampleRate / float64(fftSize)

	// Amplitude of a windowed sinusoid is 2|X|/sum(w).
	level := core.LinearPowerToDB(4 * power[peak] / (windowSum * windowSum))

	return (float64(peak) + offset) * binHz, level, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// Recorder accumulates interleaved blocks up to a fixed number of frames.
type Recorder struct {
	channels int
	limit    int
	samples  []float64
}

// NewRecorder returns a recorder holding at most frames frames.
func NewRecorder(frames, channels int) *Recorder {
	channels = max(channels, 1)

	return &Recorder{
		channels: channels,
		limit:    max(frames, 0) * channels,
		samples:  make([]float64, 0, max(frames, 0)*channels),
	}
}

// Append records as much of block as still fits and reports whether the
// recorder is full.
func (r *Recorder) Append(block []float64) bool {
	n := min(len(block), r.limit-len(r.samples))
	r.samples = append(r.samples, block[:n]...)

	return r.Full()
}

// Full reports whether the recorder reached its limit.
func (r *Recorder) Full() bool { return len(r.samples) >= r.limit }

// Samples returns the recorded interleaved samples.
func (r *Recorder) Samples() []float64 { return r.samples }

// Analyze runs Analyze over the recorded samples.
func (r *Recorder) Analyze(sampleRate float64) (Result, error) {
	return Analyze(r.samples, Config{SampleRate: sampleRate, Channels: r.channels})
}
