package source

import "fmt"

// State is the lifecycle state of a Source.
type State int32

const (
	Uninitialized State = iota
	Initialized
	ConnectedSleeping
	ConnectedAcquiring
	Disconnected
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case ConnectedSleeping:
		return "connected_sleeping"
	case ConnectedAcquiring:
		return "connected_acquiring"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Connected reports whether a worker exists in this state.
func (s State) Connected() bool { return s == ConnectedSleeping || s == ConnectedAcquiring }
