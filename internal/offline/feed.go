// Package offline produces canned praise batches when no upstream is
// reachable. Batches use the same JSON shape as the stream so they take the
// same normalization path.
package offline

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/praise"
)

// IDPrefix tags ids of offline messages.
const IDPrefix = "mock"

type message struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Tokens    float64 `json:"tokens"`
}

type Option func(*Feed)

// WithInterval sets the time between batches.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) { f.interval = d }
}

// WithBatchSize sets the inclusive batch size range.
func WithBatchSize(lo, hi int) Option {
	return func(f *Feed) { f.batchMin, f.batchMax = lo, hi }
}

func WithRand(r *rand.Rand) Option {
	return func(f *Feed) { f.rng = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.log = l }
}

// Feed emits a batch every interval until stopped. Its timer runs through the
// clock, so emit is called on the clock's dispatcher.
type Feed struct {
	doc      *praise.Document
	clock    clock.Clock
	emit     func(json.RawMessage)
	interval time.Duration
	batchMin int
	batchMax int
	rng      *rand.Rand
	log      *slog.Logger

	timer   clock.Timer
	running bool
	batches int
}

// New creates a stopped feed drawing from doc.
func New(doc *praise.Document, clk clock.Clock, emit func(json.RawMessage), opts ...Option) *Feed {
	f := &Feed{
		doc:      doc,
		clock:    clk,
		emit:     emit,
		interval: time.Second,
		batchMin: 8,
		batchMax: 12,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	if f.batchMax < f.batchMin {
		f.batchMax = f.batchMin
	}
	return f
}

// Start begins emitting; the first batch arrives after one interval.
func (f *Feed) Start() {
	if f.running {
		return
	}
	f.running = true
	f.log.Info("offline feed started", "interval", f.interval, "entries", f.doc.Len())
	f.schedule()
}

// Stop cancels the pending batch. It is safe to call when stopped.
func (f *Feed) Stop() {
	if !f.running {
		return
	}
	f.running = false
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.log.Info("offline feed stopped", "batches", f.batches)
}

// Running reports whether the feed is emitting.
func (f *Feed) Running() bool { return f.running }

// Batch builds one encoded batch stamped with now.
func (f *Feed) Batch(now time.Time) json.RawMessage {
	n := f.batchMin + f.rng.Intn(f.batchMax-f.batchMin+1)
	out := make([]message, n)
	for i := range out {
		e := f.doc.Pick(f.rng)
		tokens := e.Tokens
		if tokens <= 0 {
			tokens = float64(5 + f.rng.Intn(5))
		}
		out[i] = message{
			ID:        praise.NewID(IDPrefix, now),
			Text:      e.Text,
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Tokens:    tokens,
		}
	}
	data, _ := json.Marshal(out)
	return data
}

func (f *Feed) schedule() {
	f.timer = f.clock.AfterFunc(f.interval, f.tick)
}

func (f *Feed) tick() {
	if !f.running {
		return
	}
	f.batches++
	f.emit(f.Batch(f.clock.Now()))
	if f.running {
		f.schedule()
	}
}
