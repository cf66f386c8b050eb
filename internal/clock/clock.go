// Package clock abstracts time for the danmaku engine and stream client.
// Real timers deliver their callbacks through a loop.Dispatcher; the Fake
// clock fires callbacks synchronously from Advance.
package clock

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/praise-danmaku/danmaku/internal/loop"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer; false means it already ran or was stopped.
	Stop() bool
}

// Clock supplies the current time and scheduled callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct {
	disp loop.Dispatcher
}

// NewReal returns a wall clock whose callbacks run through disp. A nil
// dispatcher runs callbacks on the timer goroutine.
func NewReal(disp loop.Dispatcher) *Real {
	if disp == nil {
		disp = loop.Inline{}
	}
	return &Real{disp: disp}
}

// Now returns time.Now().
func (r *Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f after d. The callback is posted to the dispatcher
// and re-checks the stopped flag there, so Stop called on the dispatcher
// wins even when the underlying timer already fired.
func (r *Real) AfterFunc(d time.Duration, f func()) Timer {
	rt := &realTimer{}
	rt.t = time.AfterFunc(d, func() {
		r.disp.Post(func() {
			if rt.done.CompareAndSwap(false, true) {
				f()
			}
		})
	})
	return rt
}

type realTimer struct {
	t    *time.Timer
	done atomic.Bool
}

func (rt *realTimer) Stop() bool {
	rt.t.Stop()
	return rt.done.CompareAndSwap(false, true)
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers f to run when the clock is advanced past now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{clock: f, when: f.now.Add(d), fn: fn, seq: f.seq}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, running due callbacks in deadline
// order on the caller's goroutine. Callbacks may schedule new timers; those
// that fall due within the window run too.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.when
		f.remove(next)
		f.mu.Unlock()
		next.fn()
	}
}

// Set jumps to t without firing anything scheduled before it.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Pending reports the number of scheduled, unfired timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// NextDeadline returns the earliest pending deadline.
func (f *Fake) NextDeadline() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return time.Time{}, false
	}
	f.sort()
	return f.timers[0].when, true
}

func (f *Fake) nextDue(target time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	f.sort()
	if f.timers[0].when.After(target) {
		return nil
	}
	return f.timers[0]
}

func (f *Fake) sort() {
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})
}

func (f *Fake) remove(t *fakeTimer) bool {
	for i, x := range f.timers {
		if x == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock *Fake
	when  time.Time
	fn    func()
	seq   int
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.remove(t)
}
