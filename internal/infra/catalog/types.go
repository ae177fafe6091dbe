package catalog

import (
	"encoding/json"
	"strings"

	"github.com/otobox/otobox/internal/domain/playlist"
	"github.com/otobox/otobox/internal/domain/track"
)

// flexID tolerates catalogs that serialize ids as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// rawTrack is the wire shape of a track. Different views of the
// resource service fill different subsets of these fields; the
// normalization into a track.Track is what makes them uniform.
type rawTrack struct {
	ID                  flexID   `json:"id"`
	Title               string   `json:"title"`
	AlbumMovieShowTitle string   `json:"album_movie_show_title"`
	FileName            string   `json:"fileName"`
	Artists             []string `json:"artists"`
	Artist              string   `json:"artist"`
	Singer              string   `json:"singer"`
	AlbumArtist         string   `json:"albumArtist"`
	Composer            string   `json:"composer"`
	Cover               string   `json:"cover"`
	AttachedPicture     string   `json:"attachedPicture"`
}

// toTrack normalizes a wire track into a descriptor. The title chain is
// owned by track.FromSource; this only maps fields onto it.
func (r *rawTrack) toTrack() track.Track {
	artists := r.Artists
	if len(artists) == 0 {
		for _, a := range []string{r.Artist, r.Singer, r.AlbumArtist, r.Composer} {
			if a != "" {
				artists = append(artists, a)
				break
			}
		}
	}

	cover := r.Cover
	if cover == "" && r.AttachedPicture != "" {
		cover = "data:image/jpeg;base64," + r.AttachedPicture
	}

	return track.FromSource(track.Source{
		ID:           string(r.ID),
		Title:        r.Title,
		DisplayTitle: r.AlbumMovieShowTitle,
		FileName:     r.FileName,
		Artists:      artists,
		Cover:        cover,
	})
}

// trackList tolerates both a bare array and a {"tracks": [...]} wrapper.
type trackList []rawTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var arr []rawTrack
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*l = arr
		return nil
	}
	var wrapped struct {
		Tracks []rawTrack `json:"tracks"`
		Data   []rawTrack `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Tracks != nil {
		*l = wrapped.Tracks
	} else {
		*l = wrapped.Data
	}
	return nil
}

func (l trackList) toTracks() []track.Track {
	out := make([]track.Track, 0, len(l))
	for i := range l {
		out = append(out, l[i].toTrack())
	}
	return out
}

// Album is a catalog album summary.
type Album struct {
	Name       string `json:"name"`
	TrackCount int    `json:"trackCount"`
	Cover      string `json:"cover"`
}

// imageBody tolerates both a bare base64 string and {"image": ...}.
type imageBody string

func (b *imageBody) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = imageBody(s)
		return nil
	}
	var wrapped struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*b = imageBody(wrapped.Image)
	return nil
}

// rawPlaylist is the wire shape of a persisted playlist.
type rawPlaylist struct {
	ID     flexID     `json:"id"`
	Name   string     `json:"name"`
	Tracks []rawTrack `json:"tracks"`
}

func (r *rawPlaylist) toPlaylist() playlist.Playlist {
	tracks := make([]track.Track, 0, len(r.Tracks))
	for i := range r.Tracks {
		tracks = append(tracks, r.Tracks[i].toTrack())
	}
	return playlist.Playlist{
		ID:     string(r.ID),
		Name:   r.Name,
		Tracks: tracks,
	}
}
