// Package config loads the garden service configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-garden/dsp/core"
	"github.com/cwbudde/algo-garden/internal/logging"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Engine holds the block geometry and transport defaults.
type Engine struct {
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
	BufferSize int     `yaml:"buffer_size" json:"buffer_size"`
	Channels   int     `yaml:"channels" json:"channels"`
	Tempo      float64 `yaml:"tempo" json:"tempo"`
	Realtime   bool    `yaml:"realtime" json:"realtime"`
}

// Log selects the log level.
type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Server configures the introspection HTTP listener.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Redis configures the snapshot store. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Config is the top-level configuration file.
type Config struct {
	Engine Engine `yaml:"engine" json:"engine"`
	Log    Log    `yaml:"log" json:"log"`
	Server Server `yaml:"server" json:"server"`
	Redis  Redis  `yaml:"redis" json:"redis"`
	// Patch is an optional patch file loaded at startup.
	Patch string `yaml:"patch" json:"patch"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	pc := core.DefaultProcessorConfig()

	return Config{
		Engine: Engine{
			SampleRate: pc.SampleRate,
			BufferSize: pc.BlockSize,
			Channels:   pc.Channels,
			Tempo:      pc.Tempo,
		},
		Log:    Log{Level: "info"},
		Server: Server{Addr: ":8080"},
		Redis:  Redis{Prefix: "garden:snapshot:"},
	}
}

// Load reads path over the defaults. A missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := Parse(data, filepath.Ext(path), &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes data into cfg. ext selects JSON for ".json" and YAML
// otherwise. Fields absent from data keep their current values.
func Parse(data []byte, ext string, cfg *Config) error {
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config json: %w", err)
		}

		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config yaml: %w", err)
	}

	return nil
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	switch {
	case c.Engine.SampleRate <= 0:
		return fmt.Errorf("%w: engine.sample_rate must be positive", ErrInvalid)
	case c.Engine.BufferSize <= 0:
		return fmt.Errorf("%w: engine.buffer_size must be positive", ErrInvalid)
	case c.Engine.Channels <= 0:
		return fmt.Errorf("%w: engine.channels must be positive", ErrInvalid)
	case c.Engine.Tempo <= 0:
		return fmt.Errorf("%w: engine.tempo must be positive", ErrInvalid)
	case c.Redis.TTL < 0:
		return fmt.Errorf("%w: redis.ttl must not be negative", ErrInvalid)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}

// Processor converts the engine section into a processor configuration.
func (c Config) Processor() core.ProcessorConfig {
	return core.ApplyProcessorOptions(
		core.WithSampleRate(c.Engine.SampleRate),
		core.WithBlockSize(c.Engine.BufferSize),
		core.WithChannels(c.Engine.Channels),
		core.WithTempo(c.Engine.Tempo),
		core.WithRealtime(c.Engine.Realtime),
	)
}
