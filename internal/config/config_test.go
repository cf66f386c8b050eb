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
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsMatchEngine(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	d := cfg.Danmaku()
	if d.Tracks != 8 || d.TrackHeight != 60 || d.MinHeight != 400 {
		t.Errorf("layout = %d x %d min %d", d.Tracks, d.TrackHeight, d.MinHeight)
	}
	if d.MinDuration != 8*time.Second || d.MaxDuration != 20*time.Second {
		t.Errorf("duration clamp = [%v, %v]", d.MinDuration, d.MaxDuration)
	}
	if cfg.Stream.ReconnectDelay != 3*time.Second || cfg.Stream.MaxReconnects != 5 {
		t.Errorf("reconnect policy = %v x %d", cfg.Stream.ReconnectDelay, cfg.Stream.MaxReconnects)
	}
	if cfg.Stream.Demand != DefaultDemand {
		t.Errorf("Demand = %q", cfg.Stream.Demand)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `
stream:
  url: ws://example.test/ws/praise
  reconnect_delay: 1500ms
engine:
  tracks: 12
  speed: 150
offline:
  enabled: true
  batch_max: 20
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Stream.URL != "ws://example.test/ws/praise" {
		t.Errorf("Stream.URL = %q", cfg.Stream.URL)
	}
	if cfg.Stream.ReconnectDelay != 1500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 1.5s", cfg.Stream.ReconnectDelay)
	}
	if cfg.Engine.Tracks != 12 || cfg.Engine.Speed != 150 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if !cfg.Offline.Enabled || cfg.Offline.BatchMax != 20 {
		t.Errorf("Offline = %+v", cfg.Offline)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Stream.MaxReconnects != 5 {
		t.Errorf("MaxReconnects = %d, want default 5", cfg.Stream.MaxReconnects)
	}
	if cfg.Engine.TrackHeight != 60 {
		t.Errorf("TrackHeight = %d, want default 60", cfg.Engine.TrackHeight)
	}
	if cfg.Offline.BatchMin != 8 {
		t.Errorf("BatchMin = %d, want default 8", cfg.Offline.BatchMin)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/config.yaml"} {
		cfg, err := LoadOrDefault(path)
		if err != nil {
			t.Fatalf("LoadOrDefault(%q) error: %v", path, err)
		}
		if cfg.Feed.Port != 8000 {
			t.Errorf("Feed.Port = %d, want default 8000", cfg.Feed.Port)
		}
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", ":::not valid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DANMAKU_URL", "ws://env.test/ws")
	t.Setenv("DANMAKU_DEMAND", "  夸夸我  ")
	t.Setenv("DANMAKU_LOG_LEVEL", "")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Stream.URL != "ws://env.test/ws" {
		t.Errorf("URL = %q", cfg.Stream.URL)
	}
	if cfg.Stream.Demand != "夸夸我" {
		t.Errorf("Demand = %q", cfg.Stream.Demand)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("empty env overrode Log.Level to %q", cfg.Log.Level)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "DANMAKU_TEST_ENVFILE=from-file\n")
	t.Setenv("DANMAKU_TEST_ENVFILE", "")
	os.Unsetenv("DANMAKU_TEST_ENVFILE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error: %v", err)
	}
	if got := os.Getenv("DANMAKU_TEST_ENVFILE"); got != "from-file" {
		t.Errorf("env = %q, want from-file", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env returned %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Stream.URL = "" }},
		{"negative delay", func(c *Config) { c.Stream.ReconnectDelay = -time.Second }},
		{"negative retries", func(c *Config) { c.Stream.MaxReconnects = -1 }},
		{"zero cell", func(c *Config) { c.UI.CellWidth = 0 }},
		{"zero frame", func(c *Config) { c.UI.FrameInterval = 0 }},
		{"batch inverted", func(c *Config) { c.Offline.BatchMin = 13 }},
		{"bad port", func(c *Config) { c.Feed.Port = 70000 }},
		{"zero rate", func(c *Config) { c.Feed.MessagesPerSecond = 0 }},
		{"token inverted", func(c *Config) { c.Feed.TokenMin = 20 }},
		{"zero tracks", func(c *Config) { c.Engine.Tracks = 0 }},
		{"clamp inverted", func(c *Config) { c.Engine.MinDuration = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	t.Run("offline without url", func(t *testing.T) {
		cfg := Default()
		cfg.Stream.URL = ""
		cfg.Offline.Enabled = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}
