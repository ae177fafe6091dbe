// Package playlist provides the persisted Playlist domain entity.
package playlist

import "github.com/otobox/otobox/internal/domain/track"

// Playlist represents a named playlist stored by the resource service.
// It is unrelated to the in-memory playback queue: the queue is volatile
// session state, a Playlist outlives the session.
type Playlist struct {
	ID     string        // Resource service playlist ID
	Name   string        // Display name
	Tracks []track.Track // Tracks in the playlist
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// Contains reports whether the playlist already holds the given track id.
func (p *Playlist) Contains(trackID string) bool {
	for i := range p.Tracks {
		if p.Tracks[i].Is(trackID) {
			return true
		}
	}
	return false
}
