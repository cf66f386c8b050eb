// Package metrics holds the Prometheus collectors shared by the engine and
// the stream client. All methods are nil-safe so components can run without
// a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "danmaku"

// Metrics groups the client-side collectors.
type Metrics struct {
	Placed      prometheus.Counter
	Dropped     *prometheus.CounterVec
	Removed     prometheus.Counter
	Active      prometheus.Gauge
	Tokens      prometheus.Counter
	Frames      prometheus.Counter
	FrameErrors prometheus.Counter
	Reconnects  prometheus.Counter
	GiveUps     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use for isolated counters.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Placed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "captions_placed_total",
			Help: "Captions accepted onto the stage.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "captions_dropped_total",
			Help: "Messages rejected before placement, by reason.",
		}, []string{"reason"}),
		Removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "captions_removed_total",
			Help: "Captions evicted from the stage.",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "captions_active",
			Help: "Captions currently on the stage.",
		}),
		Tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tokens_total",
			Help: "Token weight of accepted messages.",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_frames_total",
			Help: "Frames received from the upstream.",
		}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_frame_errors_total",
			Help: "Frames that failed to parse.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_reconnects_total",
			Help: "Reconnection attempts.",
		}),
		GiveUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_giveups_total",
			Help: "Times the client exhausted its reconnection budget.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Placed, m.Dropped, m.Removed, m.Active, m.Tokens,
			m.Frames, m.FrameErrors, m.Reconnects, m.GiveUps)
	}
	return m
}

func (m *Metrics) CaptionPlaced() {
	if m == nil {
		return
	}
	m.Placed.Inc()
	m.Active.Inc()
}

func (m *Metrics) CaptionRemoved() {
	if m == nil {
		return
	}
	m.Removed.Inc()
	m.Active.Dec()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddTokens(n float64) {
	if m == nil || n <= 0 {
		return
	}
	m.Tokens.Add(n)
}

func (m *Metrics) FrameReceived(ok bool) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	if !ok {
		m.FrameErrors.Inc()
	}
}

func (m *Metrics) ReconnectAttempted() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) GaveUp() {
	if m == nil {
		return
	}
	m.GiveUps.Inc()
}

// Feed groups the dev feed server collectors.
type Feed struct {
	Connections prometheus.Gauge
	Sent        prometheus.Counter
	Demands     prometheus.Counter
	SlowClients prometheus.Counter
}

// NewFeed creates the feed collectors and registers them with reg when it is
// non-nil.
func NewFeed(reg prometheus.Registerer) *Feed {
	f := &Feed{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "feed", Name: "connections",
			Help: "Open stream connections.",
		}),
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "messages_sent_total",
			Help: "Praise messages written to clients.",
		}),
		Demands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "demands_total",
			Help: "Client frames acknowledged.",
		}),
		SlowClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "slow_clients_total",
			Help: "Connections closed because their send buffer filled.",
		}),
	}
	if reg != nil {
		reg.MustRegister(f.Connections, f.Sent, f.Demands, f.SlowClients)
	}
	return f
}
