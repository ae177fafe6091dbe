// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"path"
	"strings"
)

// Track is the normalized descriptor of something playable.
// Several catalog views (album details, search results, filtered lists)
// produce these; they must all go through FromSource so that the same
// track coming from different views displays and compares identically.
type Track struct {
	ID      string   // Opaque catalog identifier, compared as a string
	Title   string   // Display title (see FromSource for the fallback chain)
	Artists []string // Artist display names, ordered, may be empty
	Cover   string   // Resolved image reference (URL or data URI), empty if unknown
}

// Source carries the raw fields a catalog view may provide for one
// playable item. Different views fill different subsets.
type Source struct {
	ID           string
	Title        string   // Explicit title
	DisplayTitle string   // Alternate "album/movie/show" display title
	FileName     string   // Original file name, used as a title of last resort
	Artists      []string // May contain empty entries
	Cover        string
}

// FromSource builds a descriptor from raw catalog fields.
//
// The title falls back through a fixed chain: explicit title, alternate
// display title, a name derived from the file name, then "Track {id}".
// The chain order is an invariant; producers must not invent their own.
func FromSource(s Source) Track {
	title := s.Title
	if title == "" {
		title = s.DisplayTitle
	}
	if title == "" {
		title = titleFromFileName(s.FileName)
	}
	if title == "" {
		title = fmt.Sprintf("Track %s", s.ID)
	}

	artists := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}

	return Track{
		ID:      s.ID,
		Title:   title,
		Artists: artists,
		Cover:   s.Cover,
	}
}

// Is reports whether the track carries the given id.
// Ids are compared as trimmed strings so that numeric and string ids
// coming from different producers still match.
func (t *Track) Is(id string) bool {
	return SameID(t.ID, id)
}

// SameID compares two catalog ids.
func SameID(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// ArtistLine returns the artists joined for display, or "" if unknown.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// titleFromFileName derives a display title from a file name:
// the base name with its extension removed.
func titleFromFileName(name string) string {
	if name == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSpace(base)
}
