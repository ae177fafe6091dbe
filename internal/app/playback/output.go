package playback

import (
	"context"
	"time"
)

// OutputEventType represents a media output event type.
type OutputEventType int

const (
	OutputStarted OutputEventType = iota // Playback actually started
	OutputPaused                         // Output was paused at the output itself
	OutputEnded                          // Natural end of stream
	OutputError                          // Fatal decode/network error, not end of stream
)

// String returns the string representation of the event type.
func (e OutputEventType) String() string {
	switch e {
	case OutputStarted:
		return "started"
	case OutputPaused:
		return "paused"
	case OutputEnded:
		return "ended"
	case OutputError:
		return "error"
	default:
		return "unknown"
	}
}

// OutputEvent represents an event emitted by the media output.
type OutputEvent struct {
	Type OutputEventType
	Err  error // Set for OutputError
}

// Output is the single media output handle. The binding owns it
// exclusively: no other component may touch its source or position.
type Output interface {
	// Load attaches the source URL and begins buffering. Any previously
	// attached source must already have been detached via Stop.
	Load(ctx context.Context, url string) error
	// Play starts or resumes playback of the attached source.
	Play(ctx context.Context) error
	// Pause pauses playback, keeping the source attached.
	Pause(ctx context.Context) error
	// Stop halts playback and detaches the source.
	Stop(ctx context.Context) error
	// Seek moves the playback position.
	Seek(ctx context.Context, pos time.Duration) error
	// Position returns the elapsed playback position.
	Position(ctx context.Context) (time.Duration, error)
	// Events returns the output's event channel.
	Events() <-chan OutputEvent
}
