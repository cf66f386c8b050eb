package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	dialTimeout  = 10 * time.Second
)

// Conn is one established stream connection. Read blocks until a text frame
// arrives or the connection ends. Close is safe to call more than once.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket and keeps the connection alive
// with periodic pings.
type WebsocketDialer struct {
	Dialer       *websocket.Dialer
	PingInterval time.Duration
}

// Dial connects to url.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	interval := d.PingInterval
	if interval <= 0 {
		interval = pingInterval
	}
	c := &wsConn{conn: ws, done: make(chan struct{})}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(pongTimeout))
	go c.pingLoop(interval)
	return c, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serialises frame writes and pings
	done    chan struct{}
	once    sync.Once
}

func (c *wsConn) Read() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		err = errors.Join(ignoreClosed(werr), c.conn.Close())
	})
	return err
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// CleanClose reports whether err ends a connection with a normal closure.
func CleanClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure
}
