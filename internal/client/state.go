package client

// State is the connection lifecycle state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

type eventKind int

const (
	evConnect eventKind = iota
	evDialed
	evFrame
	evClosed
	evRetry
	evDisconnect
)

func (k eventKind) String() string {
	switch k {
	case evConnect:
		return "connect"
	case evDialed:
		return "dialed"
	case evFrame:
		return "frame"
	case evClosed:
		return "closed"
	case evRetry:
		return "retry"
	case evDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// event is one input to the state machine. gen identifies the connection
// attempt that produced it; stale generations are ignored.
type event struct {
	kind eventKind
	gen  uint64
	conn Conn
	data []byte
	err  error
}
