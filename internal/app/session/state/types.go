// Package state defines the session status snapshot shared with clients.
package state

import (
	"slices"
	"time"

	"github.com/otobox/otobox/internal/domain/track"
)

// TrackInfo is the client-facing view of a queued track.
type TrackInfo struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists,omitempty"`
	Cover   string   `json:"cover,omitempty"`
}

// FromTrack converts a domain track into its client view.
func FromTrack(t track.Track) *TrackInfo {
	return &TrackInfo{
		ID:      t.ID,
		Title:   t.Title,
		Artists: t.Artists,
		Cover:   t.Cover,
	}
}

// Snapshot is one observation of the playback session, broadcast to
// subscribers and returned from the status endpoint. SequenceNo is
// assigned at broadcast time and is strictly increasing per process.
type Snapshot struct {
	SessionID  string     `json:"sessionId"`
	SequenceNo uint64     `json:"sequenceNo"`
	State      string     `json:"state"`
	Track      *TrackInfo `json:"track,omitempty"`
	Index      int        `json:"index"`
	QueueLen   int        `json:"queueLen"`
	Playing    bool       `json:"playing"`
	Looping    bool       `json:"looping"`
	Epoch      uint64     `json:"epoch"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Same reports whether two snapshots describe the same observable
// state, ignoring the sequence number and timestamp.
func (s Snapshot) Same(o Snapshot) bool {
	if s.State != o.State || s.Index != o.Index || s.QueueLen != o.QueueLen ||
		s.Playing != o.Playing || s.Looping != o.Looping ||
		s.Epoch != o.Epoch || s.Error != o.Error {
		return false
	}
	if (s.Track == nil) != (o.Track == nil) {
		return false
	}
	if s.Track == nil {
		return true
	}
	return s.Track.ID == o.Track.ID &&
		s.Track.Title == o.Track.Title &&
		s.Track.Cover == o.Track.Cover &&
		slices.Equal(s.Track.Artists, o.Track.Artists)
}
