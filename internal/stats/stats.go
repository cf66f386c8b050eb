// Package stats tracks the session figures shown in the footer.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker accumulates elapsed time and token totals. It is owned by the UI
// thread.
type Tracker struct {
	start    time.Time
	elapsed  int
	tokens   float64
	messages int
	dropped  int
}

// NewTracker starts counting at start.
func NewTracker(start time.Time) *Tracker {
	return &Tracker{start: start}
}

// Tick recomputes the elapsed whole seconds and returns them.
func (t *Tracker) Tick(now time.Time) int {
	t.elapsed = int(now.Sub(t.start) / time.Second)
	if t.elapsed < 0 {
		t.elapsed = 0
	}
	return t.elapsed
}

// Add records one accepted message.
func (t *Tracker) Add(tokens float64) {
	t.messages++
	if tokens > 0 && !math.IsInf(tokens, 0) {
		t.tokens += tokens
	}
}

// Drop records n rejected messages.
func (t *Tracker) Drop(n int) { t.dropped += n }

func (t *Tracker) Elapsed() int { return t.elapsed }

func (t *Tracker) Tokens() float64 { return t.tokens }

func (t *Tracker) Messages() int { return t.messages }

func (t *Tracker) Dropped() int { return t.dropped }

func (t *Tracker) Started() time.Time { return t.start }

// FormatElapsed renders seconds as m:ss, or h:mm:ss past an hour.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds/60)%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatTokens renders a token total with thousands separators and at most
// one decimal.
func FormatTokens(tokens float64) string {
	return humanize.Commaf(math.Round(tokens*10) / 10)
}
