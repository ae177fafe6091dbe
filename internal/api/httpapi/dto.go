package httpapi

import (
	"github.com/otobox/otobox/internal/domain/playlist"
	"github.com/otobox/otobox/internal/domain/track"
)

// TrackPayload is the wire form of a track descriptor.
type TrackPayload struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Artists []string `json:"artists,omitempty"`
	Cover   string   `json:"cover,omitempty"`
}

// toDomain normalizes the payload through the standard fallback chain,
// so a payload without a title still gets a displayable one.
func (p TrackPayload) toDomain() track.Track {
	return track.FromSource(track.Source{
		ID:      p.ID,
		Title:   p.Title,
		Artists: p.Artists,
		Cover:   p.Cover,
	})
}

func fromDomain(t track.Track) TrackPayload {
	return TrackPayload{
		ID:      t.ID,
		Title:   t.Title,
		Artists: t.Artists,
		Cover:   t.Cover,
	}
}

func fromDomainList(tracks []track.Track) []TrackPayload {
	out := make([]TrackPayload, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, fromDomain(t))
	}
	return out
}

func toDomainList(payloads []TrackPayload) []track.Track {
	out := make([]track.Track, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.toDomain())
	}
	return out
}

// PlaylistPayload is the wire form of a persisted playlist.
type PlaylistPayload struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Tracks []TrackPayload `json:"tracks,omitempty"`
}

func fromPlaylist(p playlist.Playlist) PlaylistPayload {
	return PlaylistPayload{
		ID:     p.ID,
		Name:   p.Name,
		Tracks: fromDomainList(p.Tracks),
	}
}

type queueRequest struct {
	Tracks []TrackPayload `json:"tracks"`
	Index  int            `json:"index"`
}

type trackRequest struct {
	Track TrackPayload `json:"track"`
}

type tracksRequest struct {
	Tracks []TrackPayload `json:"tracks"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type queueResponse struct {
	Tracks  []TrackPayload `json:"tracks"`
	Index   int            `json:"index"`
	Playing bool           `json:"playing"`
	Looping bool           `json:"looping"`
}

type addedResponse struct {
	Added int `json:"added"`
}

type flagResponse struct {
	Enabled bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}
