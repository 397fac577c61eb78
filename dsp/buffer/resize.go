package buffer

import "github.com/cwbudde/algo-garden/dsp/signal"

// ResizeAudio sets b to frames*channels samples, reusing existing capacity
// when possible. All samples are zeroed.
func ResizeAudio(b *signal.AudioBuffer, frames, channels int) {
	if channels < 1 {
		channels = 1
	}

	n := max(frames, 0) * channels
	if n <= cap(b.Samples) {
		b.Samples = b.Samples[:n]
	} else {
		b.Samples = make([]float64, n)
	}

	b.Channels = channels
	clear(b.Samples)
}

// ReserveEvents makes sure b can hold capacity events and empties it.
func ReserveEvents(b *signal.MidiBuffer, capacity int) {
	if cap(b.Events) < capacity {
		b.Events = make([]signal.MidiEvent, 0, capacity)
		return
	}

	b.Events = b.Events[:0]
}

// ReserveTriggers makes sure b can hold capacity triggers and empties it.
func ReserveTriggers(b *signal.TriggerBuffer, capacity int) {
	if cap(b.Triggers) < capacity {
		b.Triggers = make([]signal.TriggerEvent, 0, capacity)
		return
	}

	b.Triggers = b.Triggers[:0]
}
