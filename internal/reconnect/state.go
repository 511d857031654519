package reconnect

import "sync/atomic"

// State is the lifecycle position of a link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateRegistered
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Tracker records the current State. The zero value is StateDisconnected.
type Tracker struct {
	v atomic.Int32
}

// Set stores s and returns the previous state.
func (t *Tracker) Set(s State) State {
	return State(t.v.Swap(int32(s)))
}

// Load returns the current state.
func (t *Tracker) Load() State {
	return State(t.v.Load())
}
