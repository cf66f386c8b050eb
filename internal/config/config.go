package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/praise-danmaku/danmaku/internal/danmaku"
)

// DefaultDemand is sent to the upstream when no demand is entered.
const DefaultDemand = "需要一些鼓励和快乐"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	Engine  EngineConfig  `yaml:"engine"`
	UI      UIConfig      `yaml:"ui"`
	Offline OfflineConfig `yaml:"offline"`
	Feed    FeedConfig    `yaml:"feed"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StreamConfig struct {
	URL            string        `yaml:"url"`
	Demand         string        `yaml:"demand"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

type EngineConfig struct {
	Tracks        int           `yaml:"tracks"`
	TrackHeight   int           `yaml:"track_height"`
	MinHeight     int           `yaml:"min_height"`
	MinGap        time.Duration `yaml:"min_gap"`
	RemovalBuffer time.Duration `yaml:"removal_buffer"`
	Speed         float64       `yaml:"speed"`
	CharWidth     float64       `yaml:"char_width"`
	MinDuration   time.Duration `yaml:"min_duration"`
	MaxDuration   time.Duration `yaml:"max_duration"`
}

// UIConfig maps the engine's pixel geometry onto terminal cells.
type UIConfig struct {
	CellWidth     int           `yaml:"cell_width"`
	CellHeight    int           `yaml:"cell_height"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	Prompt        bool          `yaml:"prompt"`
}

type OfflineConfig struct {
	Enabled           bool          `yaml:"enabled"`
	FallbackOnFailure bool          `yaml:"fallback_on_failure"`
	Interval          time.Duration `yaml:"interval"`
	BatchMin          int           `yaml:"batch_min"`
	BatchMax          int           `yaml:"batch_max"`
	Praises           string        `yaml:"praises"`
}

type FeedConfig struct {
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	TokenMin          int     `yaml:"token_min"`
	TokenMax          int     `yaml:"token_max"`
	Praises           string  `yaml:"praises"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			URL:            "ws://127.0.0.1:8000/ws/praise",
			Demand:         DefaultDemand,
			ReconnectDelay: 3 * time.Second,
			MaxReconnects:  5,
		},
		Engine: EngineConfig{
			Tracks:        8,
			TrackHeight:   60,
			MinHeight:     400,
			MinGap:        500 * time.Millisecond,
			RemovalBuffer: 2 * time.Second,
			Speed:         100,
			CharWidth:     16,
			MinDuration:   8 * time.Second,
			MaxDuration:   20 * time.Second,
		},
		UI: UIConfig{
			CellWidth:     8,
			CellHeight:    20,
			FrameInterval: 80 * time.Millisecond,
			Prompt:        true,
		},
		Offline: OfflineConfig{
			FallbackOnFailure: true,
			Interval:          time.Second,
			BatchMin:          8,
			BatchMax:          12,
		},
		Feed: FeedConfig{
			Host:              "127.0.0.1",
			Port:              8000,
			MessagesPerSecond: 10,
			TokenMin:          5,
			TokenMax:          15,
		},
		Log: LogConfig{
			Level: "info",
			File:  "danmaku.log",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides fields from DANMAKU_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("DANMAKU_URL")); v != "" {
		c.Stream.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("DANMAKU_DEMAND")); v != "" {
		c.Stream.Demand = v
	}
	if v := strings.TrimSpace(os.Getenv("DANMAKU_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Stream.URL == "" && !c.Offline.Enabled:
		return fmt.Errorf("%w: stream.url is empty", ErrInvalid)
	case c.Stream.ReconnectDelay < 0:
		return fmt.Errorf("%w: stream.reconnect_delay is negative", ErrInvalid)
	case c.Stream.MaxReconnects < 0:
		return fmt.Errorf("%w: stream.max_reconnects is negative", ErrInvalid)
	case c.UI.CellWidth < 1 || c.UI.CellHeight < 1:
		return fmt.Errorf("%w: ui cell size must be positive", ErrInvalid)
	case c.UI.FrameInterval <= 0:
		return fmt.Errorf("%w: ui.frame_interval must be positive", ErrInvalid)
	case c.Offline.Interval <= 0:
		return fmt.Errorf("%w: offline.interval must be positive", ErrInvalid)
	case c.Offline.BatchMin < 1 || c.Offline.BatchMin > c.Offline.BatchMax:
		return fmt.Errorf("%w: offline batch range [%d, %d]", ErrInvalid, c.Offline.BatchMin, c.Offline.BatchMax)
	case c.Feed.Port < 0 || c.Feed.Port > 65535:
		return fmt.Errorf("%w: feed.port %d", ErrInvalid, c.Feed.Port)
	case c.Feed.MessagesPerSecond <= 0:
		return fmt.Errorf("%w: feed.messages_per_second must be positive", ErrInvalid)
	case c.Feed.TokenMin < 0 || c.Feed.TokenMin > c.Feed.TokenMax:
		return fmt.Errorf("%w: feed token range [%d, %d]", ErrInvalid, c.Feed.TokenMin, c.Feed.TokenMax)
	}
	if err := c.Danmaku().Validate(); err != nil {
		return fmt.Errorf("%w: engine: %w", ErrInvalid, err)
	}
	return nil
}

// Danmaku converts the engine section, keeping the visual defaults the file
// does not expose.
func (c *Config) Danmaku() danmaku.Config {
	d := danmaku.DefaultConfig()
	e := c.Engine
	d.Tracks = e.Tracks
	d.TrackHeight = e.TrackHeight
	d.MinHeight = e.MinHeight
	d.MinGap = e.MinGap
	d.RemovalBuffer = e.RemovalBuffer
	d.Speed = e.Speed
	d.CharWidth = e.CharWidth
	d.MinDuration = e.MinDuration
	d.MaxDuration = e.MaxDuration
	return d
}
