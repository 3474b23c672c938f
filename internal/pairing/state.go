package pairing

// State is a client's position in the pairing lifecycle. A client enters
// Unregistered at transport connect, moves to Waiting or Paired through
// matchmaking, returns to Unregistered when a pairing dissolves, and is
// Closed (all state removed) once its connection drops.
type State int

const (
	StateUnregistered State = iota
	StateWaiting
	StatePaired
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
