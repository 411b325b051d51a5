// Package connection manages the WebSocket link to the game server.
package connection

// State is the lifecycle of one server connection.
type State int

const (
	Connecting State = iota
	Open
	Authenticating
	Authenticated
	Degraded
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Degraded:
		return "degraded"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Live reports whether the transport is still usable.
func (s State) Live() bool {
	return s != Disconnected
}
