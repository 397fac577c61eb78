// Package testutil provides deterministic test signals and tolerance checks
// shared by the package tests.
package testutil

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-garden/dsp/signal"
)

// Sine returns frames of an interleaved sine with the same value on every
// channel, starting at phase zero.
func Sine(freqHz, sampleRate, amplitude float64, frames, channels int) []float64 {
	channels = max(channels, 1)
	out := make([]float64, frames*channels)
	step := 2 * math.Pi * freqHz / sampleRate

	for f := range frames {
		v := amplitude * math.Sin(step*float64(f))
		for c := range channels {
			out[f*channels+c] = v
		}
	}

	return out
}

// Noise returns white noise in [-amplitude, amplitude] from a fixed seed.
func Noise(seed uint64, amplitude float64, length int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, length)

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Ramp returns n consecutive values starting at start.
func Ramp(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}

	return out
}

// Channel extracts channel c from interleaved samples.
func Channel(samples []float64, channels, c int) []float64 {
	out := make([]float64, 0, len(samples)/max(channels, 1))
	for i := c; i < len(samples); i += channels {
		out = append(out, samples[i])
	}

	return out
}

// NoteOns returns one note-on event per frame offset, on channel 0 with
// ascending pitches from 60.
func NoteOns(frames ...uint32) []signal.MidiEvent {
	out := make([]signal.MidiEvent, len(frames))
	for i, f := range frames {
		out[i] = signal.MidiEvent{Frame: f, Message: signal.NoteOnMessage(0, uint8(60+i), 100)}
	}

	return out
}

// Frames returns the frame offsets of events in order.
func Frames(events []signal.MidiEvent) []uint32 {
	out := make([]uint32, len(events))
	for i, ev := range events {
		out[i] = ev.Frame
	}

	return out
}
