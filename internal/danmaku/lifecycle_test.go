package danmaku

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/praise-danmaku/danmaku/internal/metrics"
)

func TestPlaceRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		reason string
	}{
		{"empty text", Message{ID: "a", Text: ""}, DropEmptyText},
		{"blank text", Message{ID: "a", Text: "   "}, DropEmptyText},
		{"missing id", Message{Text: "hi"}, DropMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(nil)
			e, surf, clk := newTestEngine(t, DefaultConfig(), m)

			if _, ok := e.AddPraise(tt.msg); ok {
				t.Fatal("invalid message accepted")
			}
			if e.Manager().Len() != 0 {
				t.Errorf("active = %d, want 0", e.Manager().Len())
			}
			if e.Allocator().Busy(clk.Now()) != 0 {
				t.Error("a lane was marked occupied for a rejected message")
			}
			if len(surf.mounted) != 0 {
				t.Error("rejected message was mounted")
			}
			if clk.Pending() != 0 {
				t.Error("rejected message scheduled a removal")
			}
			if got := testutil.ToFloat64(m.Dropped.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("dropped[%s] = %v, want 1", tt.reason, got)
			}
		})
	}
}

func TestPlaceRejectsDuplicateActiveID(t *testing.T) {
	e, _, clk := newTestEngine(t, DefaultConfig(), nil)

	first, ok := e.AddPraise(Message{ID: "dup", Text: "one"})
	if !ok {
		t.Fatal("first placement rejected")
	}
	if _, ok := e.AddPraise(Message{ID: "dup", Text: "two"}); ok {
		t.Fatal("duplicate id accepted while active")
	}
	if e.Manager().Len() != 1 {
		t.Errorf("active = %d, want 1", e.Manager().Len())
	}

	// Once evicted the id may be reused.
	clk.Advance(first.Duration + 2*time.Second)
	if _, ok := e.AddPraise(Message{ID: "dup", Text: "three"}); !ok {
		t.Error("id reuse rejected after eviction")
	}
}

func TestPlaceMarksLaneAndSchedulesRemoval(t *testing.T) {
	e, surf, clk := newTestEngine(t, DefaultConfig(), nil)

	it, _ := e.AddPraise(Message{ID: "x", Text: "你真棒"})
	if got := e.Allocator().AvailableAt(it.Track); !got.Equal(epoch.Add(500 * time.Millisecond)) {
		t.Errorf("lane available at %v, want now+500ms", got)
	}

	clk.Advance(it.Duration + 2*time.Second - time.Millisecond)
	if !e.Manager().Has("x") {
		t.Fatal("caption evicted before travel time + buffer")
	}
	clk.Advance(time.Millisecond)
	if e.Manager().Has("x") {
		t.Error("caption still active after travel time + buffer")
	}
	if _, ok := surf.mounted["x"]; ok {
		t.Error("caption still mounted after eviction")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	e, _, clk := newTestEngine(t, DefaultConfig(), nil)
	mgr := e.Manager()

	e.AddPraise(Message{ID: "a", Text: "one"})
	e.AddPraise(Message{ID: "b", Text: "two"})

	mgr.Remove("a")
	if mgr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", mgr.Len())
	}
	if clk.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 after explicit remove", clk.Pending())
	}
	mgr.Remove("a")
	mgr.Remove("never-seen")
	if mgr.Len() != 1 {
		t.Errorf("Len() = %d after repeated remove, want 1", mgr.Len())
	}
}

func TestBurstGetsDistinctLanes(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig(), nil)
	mgr := e.Manager()

	lanes := make(map[int]string)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("b%d", i)
		e.AddPraise(Message{ID: id, Text: "burst"})
		tr, _ := mgr.TrackOf(id)
		if other, taken := lanes[tr]; taken {
			t.Fatalf("%s and %s share lane %d before saturation", other, id, tr)
		}
		lanes[tr] = id
	}

	e.AddPraise(Message{ID: "overflow", Text: "burst"})
	if tr, _ := mgr.TrackOf("overflow"); tr != 0 {
		t.Errorf("overflow lane = %d, want 0 (earliest)", tr)
	}
}

func TestSpacedMessagesReuseLowestLane(t *testing.T) {
	e, _, clk := newTestEngine(t, DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		it, _ := e.AddPraise(Message{ID: fmt.Sprintf("s%d", i), Text: "spaced"})
		if it.Track != 0 {
			t.Errorf("message %d lane = %d, want 0", i, it.Track)
		}
		clk.Advance(500 * time.Millisecond)
	}
}

func TestActiveOrdering(t *testing.T) {
	e, _, clk := newTestEngine(t, DefaultConfig(), nil)
	for i := 0; i < 12; i++ {
		e.AddPraise(Message{ID: fmt.Sprintf("o%d", i), Text: "order"})
		clk.Advance(10 * time.Millisecond)
	}
	items := e.Manager().Active()
	if len(items) != 12 {
		t.Fatalf("Active() len = %d, want 12", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Z > items[i].Z {
			t.Fatalf("Active() not ordered by Z at %d", i)
		}
	}
}

func TestMetricsTrackLifecycle(t *testing.T) {
	m := metrics.New(nil)
	e, _, clk := newTestEngine(t, DefaultConfig(), m)

	e.AddPraise(Message{ID: "a", Text: "one"})
	e.AddPraise(Message{ID: "b", Text: "two"})
	if got := testutil.ToFloat64(m.Active); got != 2 {
		t.Errorf("active = %v, want 2", got)
	}
	clk.Advance(time.Minute)
	if got := testutil.ToFloat64(m.Removed); got != 2 {
		t.Errorf("removed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Placed); got != 2 {
		t.Errorf("placed = %v, want 2", got)
	}
}
