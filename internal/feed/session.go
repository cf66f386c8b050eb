package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

// session is one connected client. All writes go through writePump.
type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	ping time.Duration
}

func newSession(conn *websocket.Conn, ping time.Duration) *session {
	s := &session{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		ping: ping,
	}
	go s.writePump()
	return s
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.ping)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closing")
			s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// enqueue hands data to the write pump. It returns false when the session
// is closed or its buffer is full.
func (s *session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) closed() <-chan struct{} { return s.done }
