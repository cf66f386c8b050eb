package danmaku

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSelectFirstFree(t *testing.T) {
	a := NewAllocator(4, 500*time.Millisecond)
	a.MarkOccupied(0, epoch)
	a.MarkOccupied(1, epoch)

	if got := a.Select(epoch); got != 2 {
		t.Errorf("Select() = %d, want 2", got)
	}
}

func TestSelectFreeExactlyAtAvailability(t *testing.T) {
	a := NewAllocator(3, 500*time.Millisecond)
	a.MarkOccupied(0, epoch)

	if got := a.Select(epoch.Add(500 * time.Millisecond)); got != 0 {
		t.Errorf("Select() at availability = %d, want 0", got)
	}
}

func TestSelectFallsBackToEarliest(t *testing.T) {
	a := NewAllocator(3, 500*time.Millisecond)
	a.MarkOccupied(0, epoch.Add(300*time.Millisecond))
	a.MarkOccupied(1, epoch.Add(100*time.Millisecond))
	a.MarkOccupied(2, epoch.Add(200*time.Millisecond))

	if got := a.Select(epoch.Add(350 * time.Millisecond)); got != 1 {
		t.Errorf("Select() = %d, want 1 (earliest availability)", got)
	}
}

func TestSelectTieFavorsLowestIndex(t *testing.T) {
	a := NewAllocator(4, time.Second)
	for i := 0; i < 4; i++ {
		a.MarkOccupied(i, epoch)
	}
	if got := a.Select(epoch); got != 0 {
		t.Errorf("Select() with equal availability = %d, want 0", got)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	a := NewAllocator(8, 500*time.Millisecond)
	for i := 0; i < 8; i++ {
		a.MarkOccupied(i, epoch.Add(time.Duration(8-i)*10*time.Millisecond))
	}
	now := epoch.Add(20 * time.Millisecond)
	first := a.Select(now)
	for i := 0; i < 10; i++ {
		if got := a.Select(now); got != first {
			t.Fatalf("Select() call %d = %d, want %d", i, got, first)
		}
	}
}

func TestSelectAlwaysInRange(t *testing.T) {
	tests := []struct {
		name   string
		tracks int
		want   int
	}{
		{"one lane", 1, 1},
		{"zero coerced", 0, 1},
		{"negative coerced", -3, 1},
		{"default", 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocator(tt.tracks, time.Second)
			if a.Len() != tt.want {
				t.Fatalf("Len() = %d, want %d", a.Len(), tt.want)
			}
			for i := 0; i < 20; i++ {
				now := epoch.Add(time.Duration(i) * 100 * time.Millisecond)
				got := a.Select(now)
				if got < 0 || got >= a.Len() {
					t.Fatalf("Select() = %d out of [0, %d)", got, a.Len())
				}
				a.MarkOccupied(got, now)
			}
		})
	}
}

func TestBurstStaggersAcrossLanes(t *testing.T) {
	a := NewAllocator(8, 500*time.Millisecond)
	seen := make(map[int]bool)
	for i := 0; i < 8; i++ {
		tr := a.Select(epoch)
		if seen[tr] {
			t.Fatalf("lane %d reused before all lanes were busy", tr)
		}
		seen[tr] = true
		a.MarkOccupied(tr, epoch)
	}
	if a.Busy(epoch) != 8 {
		t.Errorf("Busy() = %d, want 8", a.Busy(epoch))
	}

	// Ninth caption in the same instant: pigeonhole fallback.
	if got := a.Select(epoch); got != 0 {
		t.Errorf("saturated Select() = %d, want 0", got)
	}
}

func TestMarkOccupiedIgnoresOutOfRange(t *testing.T) {
	a := NewAllocator(2, time.Second)
	a.MarkOccupied(-1, epoch)
	a.MarkOccupied(2, epoch)
	if a.Busy(epoch) != 0 {
		t.Errorf("Busy() = %d, want 0", a.Busy(epoch))
	}
	if !a.AvailableAt(5).IsZero() {
		t.Error("AvailableAt(out of range) should be zero")
	}
}
