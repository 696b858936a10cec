package lifecycle

// State is the lifecycle state of the master driver.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateConfigured
	StateActivated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateConfigured:
		return "Configured"
	case StateActivated:
		return "Activated"
	default:
		return "Unknown"
	}
}
