package client

import "sync/atomic"

// ConnState is the session's position in the connect/join/initialize prefix.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Joining
	Initializing
	Running
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joining:
		return "joining"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	default:
		return "disconnected"
	}
}

// connStatus is written by the connection goroutine and read by the tick.
type connStatus struct {
	v atomic.Int32
}

func (s *connStatus) Load() ConnState   { return ConnState(s.v.Load()) }
func (s *connStatus) Store(c ConnState) { s.v.Store(int32(c)) }

// Transition moves from -> to only if the current state is from.
func (s *connStatus) Transition(from, to ConnState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
