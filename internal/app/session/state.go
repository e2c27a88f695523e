// Package session drives playback from normalized card events.
package session

// State represents the playback session state.
type State int

const (
	StateIdle    State = iota // No card, playback stopped
	StatePlaying              // Card active, track playing
	StatePaused               // Card active, track paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
