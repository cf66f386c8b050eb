package feed

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/praise-danmaku/danmaku/internal/praise"
)

// Message is the wire shape of one praise.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Tokens    int    `json:"tokens"`
}

// Generator produces praise frames at a bounded rate.
type Generator struct {
	doc      *praise.Document
	limiter  *rate.Limiter
	tokenMin int
	tokenMax int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator emits at most perSecond messages per second, one per frame.
func NewGenerator(doc *praise.Document, perSecond float64, tokenMin, tokenMax int, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if tokenMax < tokenMin {
		tokenMax = tokenMin
	}
	return &Generator{
		doc:      doc,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		tokenMin: tokenMin,
		tokenMax: tokenMax,
		rng:      rng,
	}
}

// Next builds one message. Tokens come from the configured range, not the
// document, the way a model bills each generation.
func (g *Generator) Next(now time.Time) Message {
	g.mu.Lock()
	e := g.doc.Pick(g.rng)
	tokens := g.tokenMin + g.rng.Intn(g.tokenMax-g.tokenMin+1)
	g.mu.Unlock()

	return Message{
		ID:        uuid.NewString(),
		Text:      e.Text,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05Z"),
		Tokens:    tokens,
	}
}

// Run calls send with one-element array frames until ctx ends or send
// reports the receiver is gone.
func (g *Generator) Run(ctx context.Context, send func([]byte) bool) error {
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		data, err := json.Marshal([]Message{g.Next(time.Now())})
		if err != nil {
			return err
		}
		if !send(data) {
			return nil
		}
	}
}
