// Package danmaku places scrolling captions on horizontal lanes and manages
// their lifetime. The engine is single-threaded: construct it with a clock
// whose callbacks run on the same dispatcher that calls AddPraise.
package danmaku

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/metrics"
)

var (
	ErrNoSurface     = errors.New("danmaku: no surface")
	ErrInvalidConfig = errors.New("danmaku: invalid config")
)

// DefaultPalette is the caption color rotation.
var DefaultPalette = []string{
	"#ff7f6e", // coral
	"#f472b6", // pink
	"#60a5fa", // blue
	"#4ade80", // green
	"#c084fc", // purple
	"#ca8a04", // yellow-600
	"#6366f1", // indigo-500
	"#f43f5e", // rose-500
}

// Config controls layout and timing.
type Config struct {
	Tracks      int
	TrackHeight int
	MinHeight   int

	MinGap        time.Duration
	RemovalBuffer time.Duration

	Speed       float64 // px/s
	CharWidth   float64 // px per character
	MinDuration time.Duration
	MaxDuration time.Duration

	FontMin      int
	FontMax      int
	JitterMargin int
	ZMax         int
	Palette      []string

	ViewportWidth int
}

// DefaultConfig returns the stock layout: 8 lanes of 60px, 100px/s travel
// clamped to 8-20s.
func DefaultConfig() Config {
	return Config{
		Tracks:        8,
		TrackHeight:   60,
		MinHeight:     400,
		MinGap:        500 * time.Millisecond,
		RemovalBuffer: 2 * time.Second,
		Speed:         100,
		CharWidth:     16,
		MinDuration:   8 * time.Second,
		MaxDuration:   20 * time.Second,
		FontMin:       14,
		FontMax:       21,
		JitterMargin:  5,
		ZMax:          10,
		Palette:       DefaultPalette,
		ViewportWidth: 1280,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Tracks < 1:
		return fmt.Errorf("%w: tracks must be positive, got %d", ErrInvalidConfig, c.Tracks)
	case c.TrackHeight < 1:
		return fmt.Errorf("%w: track height must be positive, got %d", ErrInvalidConfig, c.TrackHeight)
	case c.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive, got %v", ErrInvalidConfig, c.Speed)
	case c.CharWidth < 0:
		return fmt.Errorf("%w: char width must not be negative", ErrInvalidConfig)
	case c.MinDuration > c.MaxDuration:
		return fmt.Errorf("%w: min duration %v exceeds max %v", ErrInvalidConfig, c.MinDuration, c.MaxDuration)
	case c.FontMin < 1 || c.FontMin > c.FontMax:
		return fmt.Errorf("%w: font range [%d, %d]", ErrInvalidConfig, c.FontMin, c.FontMax)
	case c.ZMax < 1:
		return fmt.Errorf("%w: z max must be positive", ErrInvalidConfig)
	case len(c.Palette) == 0:
		return fmt.Errorf("%w: empty palette", ErrInvalidConfig)
	}
	return nil
}

// TravelDuration is the time a caption takes to cross the viewport:
// (viewport + text width) / speed, clamped to [MinDuration, MaxDuration]
// and rounded to the millisecond.
func TravelDuration(viewportWidth int, text string, cfg Config) time.Duration {
	if viewportWidth < 0 {
		viewportWidth = 0
	}
	textWidth := float64(utf8.RuneCountInString(text)) * cfg.CharWidth
	ms := (float64(viewportWidth) + textWidth) * 1000 / cfg.Speed
	ms = math.Max(ms, float64(cfg.MinDuration.Milliseconds()))
	ms = math.Min(ms, float64(cfg.MaxDuration.Milliseconds()))
	return time.Duration(math.Round(ms)) * time.Millisecond
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source for visual jitter.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMetrics attaches collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine turns accepted messages into screen-ready captions.
type Engine struct {
	cfg     Config
	surface Surface
	clock   clock.Clock
	rng     *rand.Rand
	log     *slog.Logger
	metrics *metrics.Metrics

	alloc     *Allocator
	manager   *Manager
	viewport  int
	destroyed bool
}

// New builds an engine drawing onto surface. A missing surface or an invalid
// config is a configuration error; the engine is not usable in that case.
func New(surface Surface, clk clock.Clock, cfg Config, opts ...Option) (*Engine, error) {
	if surface == nil {
		return nil, ErrNoSurface
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewReal(nil)
	}

	e := &Engine{
		cfg:      cfg,
		surface:  surface,
		clock:    clk,
		viewport: cfg.ViewportWidth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	e.alloc = NewAllocator(cfg.Tracks, cfg.MinGap)
	e.manager = NewManager(clk, e.alloc, e.build, surface, cfg.RemovalBuffer, e.log, e.metrics)
	return e, nil
}

// AddPraise places msg. It returns false when the message was dropped.
func (e *Engine) AddPraise(msg Message) (*Item, bool) {
	if e.destroyed {
		e.metrics.MessageDropped(DropDestroyed)
		e.log.Warn("engine destroyed, caption ignored", "id", msg.ID)
		return nil, false
	}
	return e.manager.Place(msg)
}

// Destroy evicts every caption, cancels all pending evictions and releases
// the surface. It is safe to call more than once.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.manager.RemoveAll()
	e.alloc.Reset()
	e.surface.Clear()
	e.log.Info("danmaku engine destroyed")
}

// Height is the drawing region height: all lanes, but never below MinHeight.
func (e *Engine) Height() int {
	return max(e.cfg.Tracks*e.cfg.TrackHeight, e.cfg.MinHeight)
}

// SetViewportWidth updates the width used for new captions.
func (e *Engine) SetViewportWidth(w int) {
	if w < 0 {
		w = 0
	}
	e.viewport = w
}

// ViewportWidth returns the current viewport width in pixels.
func (e *Engine) ViewportWidth() int { return e.viewport }

// TravelDuration computes the travel time of text at the current viewport.
func (e *Engine) TravelDuration(text string) time.Duration {
	return TravelDuration(e.viewport, text, e.cfg)
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Allocator exposes the lane state for read-only display.
func (e *Engine) Allocator() *Allocator { return e.alloc }

// Manager exposes the active registry.
func (e *Engine) Manager() *Manager { return e.manager }

// Destroyed reports whether Destroy was called.
func (e *Engine) Destroyed() bool { return e.destroyed }

func (e *Engine) build(msg Message, track int, now time.Time) *Item {
	fontSize := e.cfg.FontMin + e.rng.Intn(e.cfg.FontMax-e.cfg.FontMin+1)

	top := track * e.cfg.TrackHeight
	if span := e.cfg.TrackHeight - fontSize - e.cfg.JitterMargin; span > 0 {
		top += e.rng.Intn(span)
	}

	return &Item{
		ID:       msg.ID,
		Text:     msg.Text,
		Tokens:   msg.Tokens,
		Track:    track,
		Top:      max(top, 0),
		FontSize: fontSize,
		Color:    e.cfg.Palette[e.rng.Intn(len(e.cfg.Palette))],
		Z:        1 + e.rng.Intn(e.cfg.ZMax),
		Width:    int(float64(utf8.RuneCountInString(msg.Text)) * e.cfg.CharWidth),
		Duration: e.TravelDuration(msg.Text),
		Start:    now,
	}
}
