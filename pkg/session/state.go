package session

// State is the lifecycle phase of one call session.
type State int32

const (
	StateAdmitted State = iota
	StateConnecting
	StateAwaitingReady
	StateActive
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAdmitted:
		return "admitted"
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// terminal reports whether no further transitions can occur.
func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}
