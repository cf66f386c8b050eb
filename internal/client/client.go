// Package client maintains the praise stream connection. All state lives on
// a loop.Dispatcher: dial and read goroutines only post events, so handlers
// run on the same thread as the danmaku engine.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/loop"
	"github.com/praise-danmaku/danmaku/internal/metrics"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxReconnects  = 5
)

var (
	ErrNotOpen          = errors.New("stream not open")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// DisconnectEvent describes a lost or closed connection.
type DisconnectEvent struct {
	Clean bool
	Err   error
}

// Handlers receive connection events. Nil handlers are skipped.
type Handlers struct {
	OnConnect    func()
	OnMessage    func(json.RawMessage)
	OnError      func(error)
	OnDisconnect func(DisconnectEvent)
}

// Option configures a StreamClient.
type Option func(*StreamClient)

// WithDialer replaces the gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(c *StreamClient) { c.dialer = d }
}

// WithReconnectDelay sets the fixed delay before each reconnect attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *StreamClient) { c.delay = d }
}

// WithMaxReconnects sets how many reconnect attempts follow a lost
// connection before the client gives up.
func WithMaxReconnects(n int) Option {
	return func(c *StreamClient) { c.maxRetries = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *StreamClient) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *StreamClient) { c.metrics = m }
}

// StreamClient is a reconnecting stream connection driven by a small state
// machine. Connect, Disconnect, Send and the accessors must be called on the
// dispatcher.
type StreamClient struct {
	url        string
	h          Handlers
	disp       loop.Dispatcher
	clock      clock.Clock
	dialer     Dialer
	delay      time.Duration
	maxRetries int
	log        *slog.Logger
	metrics    *metrics.Metrics

	state      State
	gen        uint64
	retries    int
	exhausted  bool
	conn       Conn
	retryTimer clock.Timer
	cancelDial context.CancelFunc
}

// NewStreamClient creates a closed client for url.
func NewStreamClient(url string, h Handlers, disp loop.Dispatcher, clk clock.Clock, opts ...Option) *StreamClient {
	if disp == nil {
		disp = loop.Inline{}
	}
	if clk == nil {
		clk = clock.NewReal(disp)
	}
	c := &StreamClient{
		url:        url,
		h:          h,
		disp:       disp,
		clock:      clk,
		dialer:     WebsocketDialer{},
		delay:      DefaultReconnectDelay,
		maxRetries: DefaultMaxReconnects,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "stream", "url", url)
	return c
}

// Connect starts a connection from the closed state, resetting the retry
// budget. In any other state it is a logged no-op.
func (c *StreamClient) Connect() { c.handle(event{kind: evConnect}) }

// Disconnect closes the connection with a normal closure and cancels any
// pending reconnect. It is safe to call repeatedly.
func (c *StreamClient) Disconnect() { c.handle(event{kind: evDisconnect}) }

// Send JSON-encodes v and writes it. Nothing is queued while the stream is
// not open. The write runs on the dispatcher and can block it for up to the
// transport's 10s write timeout, so keep it to small control frames such as
// the demand.
func (c *StreamClient) Send(v any) error {
	if c.state != StateOpen || c.conn == nil {
		c.log.Warn("send while not open", "state", c.state)
		return fmt.Errorf("send: %w (state %s)", ErrNotOpen, c.state)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("send: encode: %w", err)
	}
	if err := c.conn.Write(data); err != nil {
		c.log.Warn("write failed", "err", err)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (c *StreamClient) State() State { return c.state }

// Exhausted reports whether the client gave up reconnecting.
func (c *StreamClient) Exhausted() bool { return c.exhausted }

// Retries returns the reconnect attempts made since the last open.
func (c *StreamClient) Retries() int { return c.retries }

// URL returns the stream endpoint.
func (c *StreamClient) URL() string { return c.url }

func (c *StreamClient) handle(ev event) {
	switch ev.kind {
	case evConnect:
		if c.state != StateClosed {
			c.log.Warn("connect ignored", "state", c.state)
			return
		}
		c.retries = 0
		c.exhausted = false
		c.dial()

	case evDialed:
		if ev.gen != c.gen || c.state != StateConnecting {
			if ev.conn != nil {
				ev.conn.Close(websocket.CloseNormalClosure, "")
			}
			return
		}
		c.cancelDial = nil
		if ev.err != nil {
			err := fmt.Errorf("dial %s: %w", c.url, ev.err)
			c.log.Warn("dial failed", "attempt", c.retries, "err", ev.err)
			gen := c.gen
			c.emitError(err)
			if c.gen != gen {
				return
			}
			c.emitDisconnect(DisconnectEvent{Err: err})
			if c.gen != gen {
				return
			}
			c.scheduleRetry()
			return
		}
		c.conn = ev.conn
		c.state = StateOpen
		c.retries = 0
		c.log.Info("stream open")
		go c.readLoop(c.gen, ev.conn)
		if c.h.OnConnect != nil {
			c.h.OnConnect()
		}

	case evFrame:
		if ev.gen != c.gen || c.state != StateOpen {
			return
		}
		if !json.Valid(ev.data) {
			c.metrics.FrameReceived(false)
			c.log.Warn("dropping malformed frame", "bytes", len(ev.data))
			return
		}
		c.metrics.FrameReceived(true)
		if c.h.OnMessage != nil {
			c.h.OnMessage(json.RawMessage(ev.data))
		}

	case evClosed:
		if ev.gen != c.gen || c.state != StateOpen {
			return
		}
		c.conn.Close(websocket.CloseNormalClosure, "")
		c.conn = nil
		clean := CleanClose(ev.err)
		if clean {
			c.log.Info("stream closed by server")
			c.state = StateClosed
			c.emitDisconnect(DisconnectEvent{Clean: true, Err: ev.err})
			return
		}
		c.log.Warn("stream lost", "err", ev.err)
		// Handlers may call Disconnect, which bumps gen.
		c.state = StateReconnecting
		gen := c.gen
		c.emitDisconnect(DisconnectEvent{Err: ev.err})
		if c.gen != gen {
			return
		}
		c.scheduleRetry()

	case evRetry:
		if ev.gen != c.gen || c.state != StateReconnecting {
			return
		}
		c.retryTimer = nil
		c.retries++
		c.metrics.ReconnectAttempted()
		c.log.Info("reconnecting", "attempt", c.retries, "max", c.maxRetries)
		c.dial()

	case evDisconnect:
		if c.state == StateClosed {
			return
		}
		wasOpen := c.state == StateOpen
		c.gen++
		if c.retryTimer != nil {
			c.retryTimer.Stop()
			c.retryTimer = nil
		}
		if c.cancelDial != nil {
			c.cancelDial()
			c.cancelDial = nil
		}
		if c.conn != nil {
			c.conn.Close(websocket.CloseNormalClosure, "client disconnect")
			c.conn = nil
		}
		c.state = StateClosed
		c.log.Info("stream disconnected")
		if wasOpen {
			c.emitDisconnect(DisconnectEvent{Clean: true})
		}
	}
}

func (c *StreamClient) dial() {
	c.gen++
	gen := c.gen
	c.state = StateConnecting

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	c.cancelDial = cancel
	go func() {
		defer cancel()
		conn, err := c.dialer.Dial(ctx, c.url)
		c.disp.Post(func() {
			c.handle(event{kind: evDialed, gen: gen, conn: conn, err: err})
		})
	}()
}

func (c *StreamClient) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			c.disp.Post(func() {
				c.handle(event{kind: evClosed, gen: gen, err: err})
			})
			return
		}
		c.disp.Post(func() {
			c.handle(event{kind: evFrame, gen: gen, data: data})
		})
	}
}

func (c *StreamClient) scheduleRetry() {
	if c.retries >= c.maxRetries {
		c.state = StateClosed
		c.exhausted = true
		c.metrics.GaveUp()
		c.log.Error("giving up on stream", "attempts", c.retries)
		c.emitError(fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, c.retries))
		return
	}
	c.state = StateReconnecting
	gen := c.gen
	c.retryTimer = c.clock.AfterFunc(c.delay, func() {
		c.handle(event{kind: evRetry, gen: gen})
	})
}

func (c *StreamClient) emitError(err error) {
	if c.h.OnError != nil {
		c.h.OnError(err)
	}
}

func (c *StreamClient) emitDisconnect(ev DisconnectEvent) {
	if c.h.OnDisconnect != nil {
		c.h.OnDisconnect(ev)
	}
}
