package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg != Default() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "garden.yaml", `
engine:
  sample_rate: 44100
  buffer_size: 64
log:
  level: debug
redis:
  addr: localhost:6379
  ttl: 10m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.SampleRate != 44100 || cfg.Engine.BufferSize != 64 {
		t.Fatalf("engine = %+v", cfg.Engine)
	}

	if cfg.Engine.Channels != 2 || cfg.Server.Addr != ":8080" {
		t.Fatalf("defaults lost: %+v", cfg)
	}

	if cfg.Redis.TTL != 10*time.Minute || cfg.Redis.Prefix != "garden:snapshot:" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}

	pc := cfg.Processor()
	if pc.SampleRate != 44100 || pc.BlockSize != 64 || pc.Tempo != 120 {
		t.Fatalf("processor = %+v", pc)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "garden.json", `{"engine": {"channels": 1, "realtime": true}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.Channels != 1 || !cfg.Processor().Realtime {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}

	bad := writeFile(t, "bad.yaml", "engine: [")
	if _, err := Load(bad); err == nil {
		t.Fatal("malformed yaml should fail")
	}

	invalid := writeFile(t, "invalid.yaml", "engine:\n  buffer_size: -1\n")
	if _, err := Load(invalid); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Engine.SampleRate = 0 }},
		{"buffer size", func(c *Config) { c.Engine.BufferSize = 0 }},
		{"channels", func(c *Config) { c.Engine.Channels = -2 }},
		{"tempo", func(c *Config) { c.Engine.Tempo = 0 }},
		{"ttl", func(c *Config) { c.Redis.TTL = -time.Second }},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
