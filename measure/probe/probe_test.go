package probe

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-garden/internal/testutil"
)

func TestAnalyzeFindsTone(t *testing.T) {
	tests := []struct {
		name     string
		freq     float64
		amp      float64
		channels int
	}{
		{"mono 440", 440, 0.5, 1},
		{"stereo 1k", 1000, 0.25, 2},
		{"stereo 3.3k", 3300, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testutil.Sine(tt.freq, 48000, tt.amp, 4096, tt.channels)

			res, err := Analyze(in, Config{SampleRate: 48000, Channels: tt.channels})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}

			binHz := 48000.0 / 4096
			if math.Abs(res.PeakFreqHz-tt.freq) > binHz {
				t.Fatalf("peak = %.2f Hz, want %.2f (±%.2f)", res.PeakFreqHz, tt.freq, binHz)
			}

			if math.Abs(res.Peak-tt.amp) > 0.01*tt.amp {
				t.Fatalf("peak level = %v, want %v", res.Peak, tt.amp)
			}

			wantRMS := tt.amp / math.Sqrt2
			if math.Abs(res.RMS-wantRMS) > 0.01*tt.amp {
				t.Fatalf("rms = %v, want %v", res.RMS, wantRMS)
			}

			// Off-bin tones lose up to 1.42 dB to Hann scalloping.
			wantDB := 20 * math.Log10(tt.amp)
			if math.Abs(res.PeakBinDB-wantDB) > 2 {
				t.Fatalf("bin level = %.2f dB, want about %.2f dB", res.PeakBinDB, wantDB)
			}
		})
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	if _, err := Analyze(nil, Config{SampleRate: 48000}); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("err = %v, want ErrNoSignal", err)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	res, err := Analyze(make([]float64, 256), Config{SampleRate: 48000})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !math.IsInf(res.PeakDB, -1) || res.RMS != 0 {
		t.Fatalf("silence measured as %+v", res)
	}
}

func TestAnalyzeNoiseIsFinite(t *testing.T) {
	res, err := Analyze(testutil.Noise(3, 0.5, 2048), Config{SampleRate: 48000})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.Peak > 0.5 || res.RMS <= 0 || math.IsNaN(res.PeakFreqHz) {
		t.Fatalf("noise measured as %+v", res)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(10, 2)
	block := make([]float64, 8)

	if r.Append(block) || r.Append(block) {
		t.Fatal("recorder full too early")
	}

	if !r.Append(block) {
		t.Fatal("recorder should be full after 12 frames offered")
	}

	if len(r.Samples()) != 20 {
		t.Fatalf("recorded %d samples, want 20", len(r.Samples()))
	}

	if _, err := r.Analyze(48000); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}
