package queue

import "github.com/otobox/otobox/internal/domain/track"

// EventType represents a queue store event type.
type EventType int

const (
	EventTrackChanged   EventType = iota // Current track was (re)bound
	EventPlayingChanged                  // Playing intent flipped
	EventLoopChanged                     // Loop flag flipped
	EventQueueChanged                    // Queue contents changed without rebinding
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventPlayingChanged:
		return "playing_changed"
	case EventLoopChanged:
		return "loop_changed"
	case EventQueueChanged:
		return "queue_changed"
	default:
		return "unknown"
	}
}

// Event represents a queue store event.
//
// Epoch increases every time the current track is explicitly (re)bound,
// so a consumer can distinguish "the same track was selected again"
// (which must restart playback) from a stale notification.
type Event struct {
	Type    EventType
	Track   *track.Track // Bound track (nil for some events)
	Index   int          // Current position, -1 when nothing is bound
	Epoch   uint64       // Binding generation, see above
	Playing bool
	Looping bool
}
