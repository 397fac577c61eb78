// Package ringbuf provides a lock-free single-producer/single-consumer sample
// ring used to move audio between a hardware callback and the processing
// graph.
//
// Exactly one goroutine may call Write and exactly one other goroutine may
// call Read for the lifetime of a RingBuffer. Swapping the producer and
// consumer roles, or adding a second producer or consumer, is undefined
// behavior.
package ringbuf

import "sync/atomic"

// RingBuffer is a fixed-capacity SPSC queue of float64 samples.
//
// The write and read cursors run freely and are only masked when indexing
// the backing array, so the fill level is always write-read with wrapping
// subtraction.
type RingBuffer struct {
	data  []float64
	mask  uint64
	write atomic.Uint64
	read  atomic.Uint64

	// discardTo is a producer-requested read position plus one; zero means
	// no request is pending.
	discardTo atomic.Uint64

	overruns  atomic.Uint64
	underruns atomic.Uint64
	discarded atomic.Uint64
}

// New returns a ring whose capacity is size rounded up to the next power of
// two (minimum 1).
func New(size int) *RingBuffer {
	capacity := nextPowerOfTwo(size)

	return &RingBuffer{
		data: make([]float64, capacity),
		mask: uint64(capacity - 1),
	}
}

// Capacity returns the rounded capacity in samples.
func (r *RingBuffer) Capacity() int {
	return len(r.data)
}

// Write copies as many samples as fit and returns the count written.
// Samples that do not fit are dropped and counted as overrun. Producer only.
func (r *RingBuffer) Write(samples []float64) int {
	w := r.write.Load()
	rd := r.read.Load()

	space := uint64(len(r.data)) - (w - rd)

	n := uint64(len(samples))
	if n > space {
		r.overruns.Add(n - space)
		n = space
	}

	for i := range n {
		r.data[(w+i)&r.mask] = samples[i]
	}

	r.write.Store(w + n)

	return int(n)
}

// Read copies up to len(out) available samples and returns the count read.
// The caller is responsible for zero-filling any shortfall, which is counted
// as underrun. Consumer only.
func (r *RingBuffer) Read(out []float64) int {
	// The request is taken before the write cursor so that w covers it.
	target := r.discardTo.Swap(0)
	w := r.write.Load()
	rd := r.read.Load()

	if target != 0 {
		target--
		if target-rd <= w-rd {
			r.discarded.Add(target - rd)
			rd = target
		}
	}

	available := w - rd

	n := uint64(len(out))
	if n > available {
		r.underruns.Add(n - available)
		n = available
	}

	for i := range n {
		out[i] = r.data[(rd+i)&r.mask]
	}

	r.read.Store(rd + n)

	return int(n)
}

// Available returns the number of samples ready to read.
func (r *RingBuffer) Available() int {
	return int(r.write.Load() - r.read.Load())
}

// Space returns the number of samples that can be written without dropping.
func (r *RingBuffer) Space() int {
	return len(r.data) - r.Available()
}

// Overruns returns the total number of samples dropped by Write.
func (r *RingBuffer) Overruns() uint64 {
	return r.overruns.Load()
}

// Underruns returns the total number of samples requested by Read that were
// not available.
func (r *RingBuffer) Underruns() uint64 {
	return r.underruns.Load()
}

// Discarded returns the total number of samples dropped by Discard or a
// discard request.
func (r *RingBuffer) Discarded() uint64 {
	return r.discarded.Load()
}

// Discard drops every sample currently readable and returns the count.
// Consumer only; the producer may keep writing.
func (r *RingBuffer) Discard() int {
	w := r.write.Load()
	rd := r.read.Load()

	r.read.Store(w)
	r.discarded.Add(w - rd)

	return int(w - rd)
}

// RequestDiscard asks the consumer to drop everything written so far. The
// drop happens at the consumer's next Read; samples written after the
// request are kept. Producer only.
func (r *RingBuffer) RequestDiscard() {
	r.discardTo.Store(r.write.Load() + 1)
}

// Reset reinitializes the ring to empty silence with the same capacity.
// It must not run concurrently with Write or Read; while a producer or
// consumer is live use Discard or RequestDiscard instead.
func (r *RingBuffer) Reset() {
	clear(r.data)
	r.write.Store(0)
	r.read.Store(0)
	r.discardTo.Store(0)
}

func nextPowerOfTwo(n int) int {
	capacity := 1
	for capacity < n {
		capacity <<= 1
	}

	return capacity
}
