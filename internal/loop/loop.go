// Package loop funnels work from timers and network goroutines onto a single
// logical thread. Engine and stream client state is only touched from
// functions posted through a Dispatcher, so neither needs locks.
package loop

import (
	"context"
	"sync"
	"time"
)

// Dispatcher runs posted functions one at a time, in post order.
type Dispatcher interface {
	Post(fn func())
}

// Loop is a goroutine-backed serial executor.
type Loop struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

// New creates a loop with the given queue depth.
func New(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		ch:   make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
	case l.ch <- fn:
	}
}

// Do posts fn and waits for it to run. It returns false if the loop stopped
// first. Do must not be called from inside the loop.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

// Run executes posted functions until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.ch:
			fn()
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Queue is a manual dispatcher: posted functions wait until the owner runs
// them. Tests use it to step event handling on the test goroutine.
type Queue struct {
	mu     sync.Mutex
	items  []func()
	signal chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Post appends fn.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len reports how many functions are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RunNext waits up to timeout for a posted function and runs it on the
// calling goroutine.
func (q *Queue) RunNext(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if fn := q.pop(); fn != nil {
			fn()
			return true
		}
		select {
		case <-q.signal:
		case <-deadline.C:
			return false
		}
	}
}

// Drain runs everything currently queued, including work posted while
// draining, and returns the number of functions run.
func (q *Queue) Drain() int {
	n := 0
	for fn := q.pop(); fn != nil; fn = q.pop() {
		fn()
		n++
	}
	return n
}

func (q *Queue) pop() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return fn
}

// Inline runs posted functions immediately on the caller's goroutine.
type Inline struct{}

// Post runs fn.
func (Inline) Post(fn func()) { fn() }
