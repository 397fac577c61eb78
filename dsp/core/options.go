package core

// ProcessorConfig defines the engine-wide processing settings shared by the
// graph driver and the bridging nodes.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	Channels   int
	// Tempo is the transport tempo reference in beats per minute.
	Tempo float64
	// Realtime selects realtime (deadline-bound) processing instead of offline
	// rendering.
	Realtime bool
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for offline and streaming use.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  256,
		Channels:   2,
		Tempo:      120,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the per-tick block size in frames.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithChannels sets the interleaved channel count of audio buffers.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if channels > 0 {
			cfg.Channels = channels
		}
	}
}

// WithTempo sets the tempo reference in BPM.
func WithTempo(bpm float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if bpm > 0 {
			cfg.Tempo = bpm
		}
	}
}

// WithRealtime switches between realtime and offline processing.
func WithRealtime(realtime bool) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		cfg.Realtime = realtime
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// BlockDurationNanos returns the wall-clock length of one block, which is the
// processing deadline in realtime mode.
func (c ProcessorConfig) BlockDurationNanos() uint64 {
	if c.SampleRate <= 0 {
		return 0
	}

	return uint64(float64(c.BlockSize) / c.SampleRate * 1e9)
}
