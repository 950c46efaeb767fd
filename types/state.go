package types

// State represents the server lifecycle state.
//
// States only move forward:
//
//	StateStarting → StateRunning → StateStopping → StateStopped
//
// A server whose Run failed during start goes straight to StateStopped.
type State int32

const (
	// StateStarting indicates subscriptions are being created.
	StateStarting State = iota

	// StateRunning indicates the server is accepting requests.
	StateRunning

	// StateStopping indicates subscriptions are being removed and in-flight work drained.
	StateStopping

	// StateStopped is terminal.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
