package danmaku

import "time"

// Allocator owns the availability timestamps of a fixed set of horizontal
// lanes. A lane with a zero or past timestamp is free.
type Allocator struct {
	avail  []time.Time
	minGap time.Duration
}

// NewAllocator creates n lanes. n below 1 is treated as 1.
func NewAllocator(n int, minGap time.Duration) *Allocator {
	if n < 1 {
		n = 1
	}
	return &Allocator{
		avail:  make([]time.Time, n),
		minGap: minGap,
	}
}

// Len returns the number of lanes.
func (a *Allocator) Len() int { return len(a.avail) }

// MinGap returns how long a lane stays blocked after a placement.
func (a *Allocator) MinGap() time.Duration { return a.minGap }

// Select picks a lane for a caption arriving at now: the lowest-index free
// lane, or, when every lane is busy, the one that frees up first (lowest
// index on ties). It never fails and does not mutate state.
func (a *Allocator) Select(now time.Time) int {
	for i, t := range a.avail {
		if !t.After(now) {
			return i
		}
	}
	best := 0
	for i := 1; i < len(a.avail); i++ {
		if a.avail[i].Before(a.avail[best]) {
			best = i
		}
	}
	return best
}

// MarkOccupied blocks the lane until now+minGap.
func (a *Allocator) MarkOccupied(track int, now time.Time) {
	if track < 0 || track >= len(a.avail) {
		return
	}
	a.avail[track] = now.Add(a.minGap)
}

// AvailableAt returns when the lane may be reused.
func (a *Allocator) AvailableAt(track int) time.Time {
	if track < 0 || track >= len(a.avail) {
		return time.Time{}
	}
	return a.avail[track]
}

// Busy counts lanes still blocked at now.
func (a *Allocator) Busy(now time.Time) int {
	n := 0
	for _, t := range a.avail {
		if t.After(now) {
			n++
		}
	}
	return n
}

// Reset frees every lane.
func (a *Allocator) Reset() {
	for i := range a.avail {
		a.avail[i] = time.Time{}
	}
}
