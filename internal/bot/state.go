package bot

// State is the supervisor lifecycle state.
type State int32

const (
	StateInit State = iota
	StateLoaded
	StateConnected
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoaded:
		return "loaded"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
