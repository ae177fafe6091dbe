// Package playback binds the queue store's current track to a single
// media output, resolving stream authorization on every track change and
// recovering once from mid-stream errors.
package playback

// State represents the engine binding state.
type State int

const (
	StateIdle     State = iota // No current track
	StateLoading               // Resolve/attach in flight
	StatePlaying               // Output is playing
	StatePaused                // Output is attached but paused
	StateErroring              // A one-shot recovery is in progress
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateErroring:
		return "erroring"
	default:
		return "unknown"
	}
}
