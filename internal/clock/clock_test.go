package clock

import (
	"testing"
	"time"

	"github.com/praise-danmaku/danmaku/internal/loop"
)

func TestFakeAdvanceRunsInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(2500 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order after 2.5s = %v, want [1 2]", order)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", c.Pending())
	}

	c.Advance(time.Second)
	if len(order) != 3 {
		t.Fatalf("order after 3.5s = %v, want 3 entries", order)
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("first Stop() = false, want true")
	}
	if tm.Stop() {
		t.Error("second Stop() = true, want false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeNestedScheduling(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
	if got := c.Now(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("Now() = %v, want %v", got, time.Unix(5, 0))
	}
}

func TestRealTimerRunsThroughDispatcher(t *testing.T) {
	q := loop.NewQueue()
	c := NewReal(q)

	fired := false
	c.AfterFunc(5*time.Millisecond, func() { fired = true })

	if !q.RunNext(time.Second) {
		t.Fatal("timer callback was never posted")
	}
	if !fired {
		t.Error("callback did not run")
	}
}

func TestRealTimerStoppedAfterFiringDoesNotRun(t *testing.T) {
	q := loop.NewQueue()
	c := NewReal(q)

	fired := false
	tm := c.AfterFunc(time.Millisecond, func() { fired = true })

	// Wait for the underlying timer to post, then stop before running.
	deadline := time.Now().Add(time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if q.Len() == 0 {
		t.Fatal("timer never posted")
	}
	if !tm.Stop() {
		t.Error("Stop() = false, want true for a fired but unrun timer")
	}
	q.Drain()
	if fired {
		t.Error("callback ran after Stop")
	}
}
