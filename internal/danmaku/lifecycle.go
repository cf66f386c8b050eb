package danmaku

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/metrics"
)

// Drop reasons reported to metrics.
const (
	DropEmptyText   = "empty_text"
	DropMissingID   = "missing_id"
	DropDuplicateID = "duplicate_id"
	DropDestroyed   = "destroyed"
)

// Builder turns an accepted message into a visual handle on the given track.
type Builder func(msg Message, track int, now time.Time) *Item

type entry struct {
	id    string
	track int
	item  *Item
	start time.Time
}

// Manager owns the active caption registry and the removal timer for each
// caption. It is not safe for concurrent use; run it on one dispatcher.
type Manager struct {
	clock   clock.Clock
	alloc   *Allocator
	build   Builder
	surface Surface
	buffer  time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	active map[string]*entry
	timers map[string]clock.Timer
}

// NewManager wires a manager. buffer is added to each caption's travel time
// before it is evicted.
func NewManager(clk clock.Clock, alloc *Allocator, build Builder, surface Surface, buffer time.Duration, log *slog.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		clock:   clk,
		alloc:   alloc,
		build:   build,
		surface: surface,
		buffer:  buffer,
		log:     log,
		metrics: m,
		active:  make(map[string]*entry),
		timers:  make(map[string]clock.Timer),
	}
}

// Place accepts msg onto a track and schedules its eviction. Invalid
// messages are logged at warn level and rejected; Place never fails loudly.
func (m *Manager) Place(msg Message) (*Item, bool) {
	if strings.TrimSpace(msg.Text) == "" {
		m.reject(msg, DropEmptyText)
		return nil, false
	}
	if msg.ID == "" {
		m.reject(msg, DropMissingID)
		return nil, false
	}
	if _, dup := m.active[msg.ID]; dup {
		m.reject(msg, DropDuplicateID)
		return nil, false
	}

	now := m.clock.Now()
	track := m.alloc.Select(now)
	item := m.build(msg, track, now)

	// Registry first, then the lane, so the lane is never seen free while
	// the entry exists.
	m.active[msg.ID] = &entry{id: msg.ID, track: track, item: item, start: now}
	m.alloc.MarkOccupied(track, now)
	m.surface.Mount(item)

	id := msg.ID
	m.timers[id] = m.clock.AfterFunc(item.Duration+m.buffer, func() {
		m.Remove(id)
	})

	m.metrics.CaptionPlaced()
	m.log.Debug("caption placed", "id", id, "track", track, "duration", item.Duration)
	return item, true
}

// Remove evicts a caption. Unknown or already removed ids are ignored.
func (m *Manager) Remove(id string) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	e, ok := m.active[id]
	if !ok {
		return
	}
	delete(m.active, id)
	m.surface.Unmount(e.id)
	m.metrics.CaptionRemoved()
}

// RemoveAll cancels every pending eviction and clears the registry.
func (m *Manager) RemoveAll() {
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	for id, e := range m.active {
		m.surface.Unmount(e.id)
		delete(m.active, id)
		m.metrics.CaptionRemoved()
	}
}

// Len returns the number of active captions.
func (m *Manager) Len() int { return len(m.active) }

// Has reports whether id is active.
func (m *Manager) Has(id string) bool {
	_, ok := m.active[id]
	return ok
}

// Pending returns the number of scheduled evictions.
func (m *Manager) Pending() int { return len(m.timers) }

// Active returns the active captions, lowest stacking order first, then by
// start time.
func (m *Manager) Active() []*Item {
	out := make([]*Item, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e.item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TrackOf returns the lane an active caption was placed on.
func (m *Manager) TrackOf(id string) (int, bool) {
	e, ok := m.active[id]
	if !ok {
		return 0, false
	}
	return e.track, true
}

func (m *Manager) reject(msg Message, reason string) {
	m.metrics.MessageDropped(reason)
	m.log.Warn("caption rejected", "reason", reason, "id", msg.ID, "text", msg.Text)
}
