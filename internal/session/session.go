// Package session wires the praise stream, the offline feed and the danmaku
// engine together. Every method must run on the dispatcher thread, which is
// also where client and timer callbacks land.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/praise-danmaku/danmaku/internal/client"
	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/config"
	"github.com/praise-danmaku/danmaku/internal/danmaku"
	"github.com/praise-danmaku/danmaku/internal/loop"
	"github.com/praise-danmaku/danmaku/internal/metrics"
	"github.com/praise-danmaku/danmaku/internal/offline"
	"github.com/praise-danmaku/danmaku/internal/praise"
	"github.com/praise-danmaku/danmaku/internal/stats"
)

// Event kinds passed to Options.OnEvent.
const (
	KindStream  = "ws"
	KindCaption = "cap"
	KindError   = "err"
	KindOffline = "off"
)

// Modes beyond the client states.
const (
	ModeOffline = "offline"
	ModeLost    = "lost"
)

// Options configure a Session. Config, Surface, Clock and Dispatcher are
// required.
type Options struct {
	Config     *config.Config
	Surface    danmaku.Surface
	Clock      clock.Clock
	Dispatcher loop.Dispatcher
	Dialer     client.Dialer
	Document   *praise.Document
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Rand       *rand.Rand

	// OnEvent receives human-readable progress lines.
	OnEvent func(kind, msg string)
}

// Session is one run of the viewer.
type Session struct {
	cfg     *config.Config
	clk     clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	onEvent func(kind, msg string)

	engine  *danmaku.Engine
	client  *client.StreamClient
	offline *offline.Feed
	tracker *stats.Tracker

	demand  string
	lost    bool
	stopped bool
}

// New builds a stopped session.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session: nil config")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano()))
	}
	if opts.Document == nil {
		doc, err := praise.LoadDocument(opts.Config.Offline.Praises)
		if err != nil {
			return nil, fmt.Errorf("offline praises: %w", err)
		}
		opts.Document = doc
	}

	s := &Session{
		cfg:     opts.Config,
		clk:     opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
		onEvent: opts.OnEvent,
		tracker: stats.NewTracker(opts.Clock.Now()),
	}

	eng, err := danmaku.New(opts.Surface, opts.Clock, opts.Config.Danmaku(),
		danmaku.WithRand(opts.Rand),
		danmaku.WithLogger(opts.Logger),
		danmaku.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, err
	}
	s.engine = eng

	copts := []client.Option{
		client.WithReconnectDelay(opts.Config.Stream.ReconnectDelay),
		client.WithMaxReconnects(opts.Config.Stream.MaxReconnects),
		client.WithLogger(opts.Logger),
		client.WithMetrics(opts.Metrics),
	}
	if opts.Dialer != nil {
		copts = append(copts, client.WithDialer(opts.Dialer))
	}
	s.client = client.NewStreamClient(opts.Config.Stream.URL, client.Handlers{
		OnConnect:    s.onConnect,
		OnMessage:    func(raw json.RawMessage) { s.Ingest(raw) },
		OnError:      s.onError,
		OnDisconnect: s.onDisconnect,
	}, opts.Dispatcher, opts.Clock, copts...)

	oc := opts.Config.Offline
	s.offline = offline.New(opts.Document, opts.Clock, s.Ingest,
		offline.WithInterval(oc.Interval),
		offline.WithBatchSize(oc.BatchMin, oc.BatchMax),
		offline.WithRand(opts.Rand),
		offline.WithLogger(opts.Logger),
	)
	return s, nil
}

// Start connects with demand, or starts the offline feed when offline mode is
// configured.
func (s *Session) Start(demand string) {
	if s.stopped {
		return
	}
	s.demand = demand
	if s.cfg.Offline.Enabled {
		s.goOffline("offline mode")
		return
	}
	s.emit(KindStream, "connecting to %s", s.client.URL())
	s.client.Connect()
}

// Reconnect restarts the stream after the retry budget ran out. It reports
// whether a new attempt was started.
func (s *Session) Reconnect() bool {
	if s.stopped || s.cfg.Offline.Enabled || !s.client.Exhausted() {
		return false
	}
	s.offline.Stop()
	s.lost = false
	s.emit(KindStream, "reconnecting to %s", s.client.URL())
	s.client.Connect()
	return true
}

// Stop tears everything down. Later callbacks find nothing to do.
func (s *Session) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.client.Disconnect()
	s.offline.Stop()
	s.engine.Destroy()
	s.log.Info("session stopped",
		"messages", s.tracker.Messages(),
		"tokens", s.tracker.Tokens(),
		"dropped", s.tracker.Dropped())
}

// Ingest normalizes one stream frame and places its praises in order.
func (s *Session) Ingest(raw json.RawMessage) {
	if s.stopped {
		return
	}
	batch := praise.Normalize(raw, s.clk.Now())
	if batch.Dropped > 0 {
		s.tracker.Drop(batch.Dropped)
		s.emit(KindError, "dropped %d malformed praise(s)", batch.Dropped)
	}
	for _, msg := range batch.Messages {
		it, ok := s.engine.AddPraise(msg)
		if !ok {
			s.tracker.Drop(1)
			continue
		}
		s.tracker.Add(msg.Tokens)
		s.metrics.AddTokens(msg.Tokens)
		s.emit(KindCaption, "lane %d %s", it.Track, msg.Text)
	}
}

// Mode is the connection state name, or ModeOffline / ModeLost.
func (s *Session) Mode() string {
	switch {
	case s.offline.Running():
		return ModeOffline
	case s.lost:
		return ModeLost
	}
	return s.client.State().String()
}

func (s *Session) Engine() *danmaku.Engine { return s.engine }

func (s *Session) Client() *client.StreamClient { return s.client }

func (s *Session) Tracker() *stats.Tracker { return s.tracker }

func (s *Session) Demand() string { return s.demand }

// Lost reports whether the stream gave up, even while the offline feed runs.
func (s *Session) Lost() bool { return s.lost }

func (s *Session) Stopped() bool { return s.stopped }

func (s *Session) onConnect() {
	s.lost = false
	s.emit(KindStream, "connected")
	if err := s.client.Send(map[string]string{"demand": s.demand}); err != nil {
		s.log.Warn("send demand", "error", err)
		s.emit(KindError, "send demand: %v", err)
	}
}

func (s *Session) onError(err error) {
	s.emit(KindError, "%v", err)
	if !errors.Is(err, client.ErrRetriesExhausted) {
		return
	}
	s.lost = true
	s.log.Error("connection lost", "url", s.client.URL(), "error", err)
	if s.cfg.Offline.FallbackOnFailure && !s.stopped {
		s.goOffline("stream unavailable")
	}
}

func (s *Session) onDisconnect(ev client.DisconnectEvent) {
	if ev.Clean {
		s.emit(KindStream, "disconnected")
		return
	}
	s.emit(KindStream, "connection dropped: %v", ev.Err)
}

func (s *Session) goOffline(reason string) {
	s.emit(KindOffline, "%s, showing offline praises", reason)
	s.offline.Start()
}

func (s *Session) emit(kind, format string, args ...any) {
	if s.onEvent != nil {
		s.onEvent(kind, fmt.Sprintf(format, args...))
	}
}
