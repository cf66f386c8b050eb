package danmaku

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/metrics"
)

// recordingSurface tracks mounts so tests can see every mutation.
type recordingSurface struct {
	mounted  map[string]*Item
	mutation int
	cleared  int
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{mounted: make(map[string]*Item)}
}

func (s *recordingSurface) Mount(it *Item) {
	s.mounted[it.ID] = it
	s.mutation++
}

func (s *recordingSurface) Unmount(id string) {
	delete(s.mounted, id)
	s.mutation++
}

func (s *recordingSurface) Clear() {
	s.mounted = make(map[string]*Item)
	s.cleared++
	s.mutation++
}

func newTestEngine(t *testing.T, cfg Config, m *metrics.Metrics) (*Engine, *recordingSurface, *clock.Fake) {
	t.Helper()
	surf := newRecordingSurface()
	clk := clock.NewFake(epoch)
	e, err := New(surf, clk, cfg, WithRand(rand.New(rand.NewSource(1))), WithMetrics(m))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e, surf, clk
}

func TestTravelDurationScenario(t *testing.T) {
	got := TravelDuration(1000, "hello", DefaultConfig())
	if got != 10800*time.Millisecond {
		t.Errorf("TravelDuration(1000, hello) = %v, want 10.8s", got)
	}
}

func TestTravelDurationBounds(t *testing.T) {
	cfg := DefaultConfig()
	for _, vw := range []int{-50, 0, 1, 800, 1920, 100000} {
		for _, n := range []int{0, 1, 5, 50, 500} {
			d := TravelDuration(vw, strings.Repeat("夸", n), cfg)
			if d < 8*time.Second || d > 20*time.Second {
				t.Errorf("TravelDuration(%d, %d runes) = %v, outside [8s, 20s]", vw, n, d)
			}
		}
	}
}

func TestTravelDurationMonotonicInLength(t *testing.T) {
	cfg := DefaultConfig()
	for _, vw := range []int{0, 700, 1000, 1500, 100000} {
		prev := time.Duration(0)
		for n := 0; n < 200; n++ {
			d := TravelDuration(vw, strings.Repeat("a", n), cfg)
			if d < prev {
				t.Fatalf("viewport %d: duration dropped from %v to %v at length %d", vw, prev, d, n)
			}
			prev = d
		}
	}
}

func TestTravelDurationCountsRunes(t *testing.T) {
	cfg := DefaultConfig()
	if a, b := TravelDuration(1000, "你今天真棒！", cfg), TravelDuration(1000, "abcdef", cfg); a != b {
		t.Errorf("six runes should travel equally: %v vs %v", a, b)
	}
}

func TestHeightNeverBelowMinimum(t *testing.T) {
	tests := []struct {
		tracks, height, want int
	}{
		{8, 60, 480},
		{2, 60, 400},
		{1, 1, 400},
		{10, 60, 600},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.tracks, tt.height), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Tracks = tt.tracks
			cfg.TrackHeight = tt.height
			e, _, _ := newTestEngine(t, cfg, nil)
			if got := e.Height(); got != tt.want {
				t.Errorf("Height() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadConstruction(t *testing.T) {
	clk := clock.NewFake(epoch)
	if _, err := New(nil, clk, DefaultConfig()); !errors.Is(err, ErrNoSurface) {
		t.Errorf("New(nil surface) error = %v, want ErrNoSurface", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.Tracks = 0 },
		func(c *Config) { c.TrackHeight = 0 },
		func(c *Config) { c.Speed = 0 },
		func(c *Config) { c.MinDuration = 30 * time.Second },
		func(c *Config) { c.FontMin = 30 },
		func(c *Config) { c.Palette = nil },
		func(c *Config) { c.ZMax = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := New(newRecordingSurface(), clk, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: error = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestVisualParametersWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	palette := make(map[string]bool)
	for _, c := range cfg.Palette {
		palette[c] = true
	}

	for seed := int64(0); seed < 20; seed++ {
		surf := newRecordingSurface()
		clk := clock.NewFake(epoch)
		e, err := New(surf, clk, cfg, WithRand(rand.New(rand.NewSource(seed))))
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 40; i++ {
			it, ok := e.AddPraise(Message{ID: fmt.Sprintf("m%d", i), Text: "你很棒"})
			if !ok {
				t.Fatalf("seed %d: message %d rejected", seed, i)
			}
			if it.FontSize < 14 || it.FontSize > 21 {
				t.Errorf("font size %d outside [14, 21]", it.FontSize)
			}
			if it.Z < 1 || it.Z > 10 {
				t.Errorf("z %d outside [1, 10]", it.Z)
			}
			if !palette[it.Color] {
				t.Errorf("color %q not in palette", it.Color)
			}
			lo := it.Track * cfg.TrackHeight
			hi := lo + cfg.TrackHeight - it.FontSize - cfg.JitterMargin
			if it.Top < lo || it.Top >= max(hi, lo+1) {
				t.Errorf("top %d outside lane %d band [%d, %d)", it.Top, it.Track, lo, hi)
			}
			clk.Advance(100 * time.Millisecond)
		}
	}
}

func TestJitterCollapsesOnNarrowLanes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackHeight = 10
	e, _, _ := newTestEngine(t, cfg, nil)

	it, ok := e.AddPraise(Message{ID: "a", Text: "hi"})
	if !ok {
		t.Fatal("rejected")
	}
	if it.Top != it.Track*cfg.TrackHeight {
		t.Errorf("Top = %d, want lane origin %d", it.Top, it.Track*cfg.TrackHeight)
	}
}

func TestAddPraiseScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ViewportWidth = 1000
	e, surf, _ := newTestEngine(t, cfg, nil)

	it, ok := e.AddPraise(Message{ID: "h", Text: "hello"})
	if !ok {
		t.Fatal("AddPraise rejected a valid message")
	}
	if it.Duration != 10800*time.Millisecond {
		t.Errorf("Duration = %v, want 10.8s", it.Duration)
	}
	if it.Width != 80 {
		t.Errorf("Width = %d, want 80", it.Width)
	}
	if _, ok := surf.mounted["h"]; !ok {
		t.Error("item not mounted")
	}
}

func TestDestroyCancelsPendingTimers(t *testing.T) {
	m := metrics.New(nil)
	e, surf, clk := newTestEngine(t, DefaultConfig(), m)

	for i := 0; i < 3; i++ {
		e.AddPraise(Message{ID: fmt.Sprintf("p%d", i), Text: "加油"})
	}
	if clk.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", clk.Pending())
	}

	e.Destroy()
	if e.Manager().Len() != 0 {
		t.Errorf("active = %d after Destroy, want 0", e.Manager().Len())
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d after Destroy, want 0", clk.Pending())
	}
	if surf.cleared != 1 {
		t.Errorf("surface cleared %d times, want 1", surf.cleared)
	}

	before := surf.mutation
	clk.Advance(time.Minute)
	if surf.mutation != before {
		t.Error("surface mutated after Destroy")
	}

	if _, ok := e.AddPraise(Message{ID: "late", Text: "late"}); ok {
		t.Error("AddPraise accepted after Destroy")
	}
	e.Destroy()
	if surf.cleared != 1 {
		t.Error("second Destroy cleared again")
	}
	if got := testutil.ToFloat64(m.Active); got != 0 {
		t.Errorf("active gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.Dropped.WithLabelValues(DropDestroyed)); got != 1 {
		t.Errorf("destroyed drops = %v, want 1", got)
	}
}
