package testutil

import (
	"math"
	"slices"
	"testing"
)

func TestSineIsInterleavedAndDeterministic(t *testing.T) {
	s := Sine(1000, 48000, 0.5, 48, 2)
	if len(s) != 96 {
		t.Fatalf("len = %d, want 96", len(s))
	}

	if s[0] != 0 || s[1] != 0 {
		t.Fatalf("first frame = %v, %v; want phase zero", s[0], s[1])
	}

	left, right := Channel(s, 2, 0), Channel(s, 2, 1)
	if !slices.Equal(left, right) {
		t.Fatal("channels differ")
	}

	if p := Peak(s); math.Abs(p-0.5) > 1e-9 {
		t.Fatalf("peak = %v, want 0.5", p)
	}

	if !slices.Equal(s, Sine(1000, 48000, 0.5, 48, 2)) {
		t.Fatal("sine not deterministic")
	}
}

func TestNoiseSeeds(t *testing.T) {
	a, b := Noise(1, 1, 32), Noise(1, 1, 32)
	if !slices.Equal(a, b) {
		t.Fatal("same seed produced different noise")
	}

	if slices.Equal(a, Noise(2, 1, 32)) {
		t.Fatal("different seeds produced identical noise")
	}

	if Peak(a) > 1 {
		t.Fatalf("noise peak %v exceeds amplitude", Peak(a))
	}
}

func TestRampAndEvents(t *testing.T) {
	if got := Ramp(1, 4); !slices.Equal(got, []float64{1, 2, 3, 4}) {
		t.Fatalf("Ramp = %v", got)
	}

	ev := NoteOns(9, 3)
	if got := Frames(ev); !slices.Equal(got, []uint32{9, 3}) {
		t.Fatalf("Frames = %v", got)
	}
}

func TestMaxAbsDiff(t *testing.T) {
	d, err := MaxAbsDiff([]float64{1, 2, 3}, []float64{1, 2.5, 3})
	if err != nil || math.Abs(d-0.5) > 1e-15 {
		t.Fatalf("MaxAbsDiff = %v, %v; want 0.5", d, err)
	}

	if _, err := MaxAbsDiff([]float64{1}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
