package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSamplesNear fails t if got and want differ in length or any pair
// differs by more than eps.
func RequireSamplesNear(t *testing.T, got, want []float64, eps float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if diff := math.Abs(got[i] - want[i]); diff > eps {
			t.Fatalf("sample %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any sample is NaN or Inf.
func RequireFinite(t *testing.T, samples []float64) {
	t.Helper()

	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d: non-finite value %v", i, v)
		}
	}
}

// RequireSilent fails t if any sample is non-zero.
func RequireSilent(t *testing.T, samples []float64) {
	t.Helper()

	for i, v := range samples {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
}

// MaxAbsDiff returns the largest absolute difference between a and b.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}

	var worst float64
	for i := range a {
		worst = max(worst, math.Abs(a[i]-b[i]))
	}

	return worst, nil
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	var p float64
	for _, v := range samples {
		p = max(p, math.Abs(v))
	}

	return p
}
