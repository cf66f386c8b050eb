// Package feed is a development upstream: a websocket endpoint that streams
// canned praise so the client can run end-to-end without the real backend.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praise-danmaku/danmaku/internal/metrics"
	"github.com/praise-danmaku/danmaku/internal/praise"
)

const readLimit = 4096

var ackFrame = []byte(`{"type":"ack","message":"Message received"}`)

type Options struct {
	MessagesPerSecond float64
	TokenMin          int
	TokenMax          int
	PingInterval      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MessagesPerSecond: 10,
		TokenMin:          5,
		TokenMax:          15,
		PingInterval:      30 * time.Second,
	}
}

type Server struct {
	doc      *praise.Document
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Feed
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewServer creates a feed serving doc. Collectors are registered on reg,
// which also backs /metrics.
func NewServer(doc *praise.Document, opts Options, reg *prometheus.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultOptions().PingInterval
	}
	return &Server{
		doc:      doc,
		opts:     opts,
		log:      log.With("component", "feed"),
		metrics:  metrics.NewFeed(reg),
		gatherer: reg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/praise", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "err", err)
		return
	}

	sess := newSession(conn, s.opts.PingInterval)
	s.add(sess)
	s.log.Info("client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sess.close()
		s.remove(sess)
		s.log.Info("client disconnected", "remote", r.RemoteAddr)
	}()

	gen := NewGenerator(s.doc, s.opts.MessagesPerSecond, s.opts.TokenMin, s.opts.TokenMax,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	go gen.Run(ctx, func(data []byte) bool {
		if sess.enqueue(data) {
			s.metrics.Sent.Inc()
			return true
		}
		select {
		case <-sess.closed():
		default:
			s.metrics.SlowClients.Inc()
			s.log.Warn("client too slow, disconnecting", "remote", r.RemoteAddr)
			sess.close()
		}
		return false
	})

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleClientFrame(sess, data)
	}
}

func (s *Server) handleClientFrame(sess *session, data []byte) {
	var body struct {
		Demand string `json:"demand"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		s.log.Warn("unreadable client frame", "err", err)
	} else {
		s.log.Info("demand received", "demand", body.Demand)
	}
	s.metrics.Demands.Inc()
	sess.enqueue(ackFrame)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.ClientCount(),
	})
}

func (s *Server) add(sess *session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.metrics.Connections.Inc()
}

func (s *Server) remove(sess *session) {
	s.mu.Lock()
	_, ok := s.sessions[sess]
	delete(s.sessions, sess)
	s.mu.Unlock()
	if ok {
		s.metrics.Connections.Dec()
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session with a normal closure.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.close()
	}
}

// Serve listens on addr until ctx is cancelled, then closes sessions and
// shuts the listener down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("feed listening", "addr", addr, "rate", s.opts.MessagesPerSecond)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
