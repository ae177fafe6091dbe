package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSource_TitleChain(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		expected string
	}{
		{
			name: "explicit title wins",
			source: Source{
				ID:           "42",
				Title:        "Blue in Green",
				DisplayTitle: "Kind of Blue",
				FileName:     "03_blue_in_green.flac",
			},
			expected: "Blue in Green",
		},
		{
			name: "alternate display title used when title empty",
			source: Source{
				ID:           "42",
				DisplayTitle: "Kind of Blue",
				FileName:     "03_blue_in_green.flac",
			},
			expected: "Kind of Blue",
		},
		{
			name: "file name derived when both titles empty",
			source: Source{
				ID:       "42",
				FileName: "music/jazz/03_blue_in_green.flac",
			},
			expected: "03_blue_in_green",
		},
		{
			name: "windows style path in file name",
			source: Source{
				ID:       "42",
				FileName: `C:\music\blue in green.mp3`,
			},
			expected: "blue in green",
		},
		{
			name:     "synthesized title of last resort",
			source:   Source{ID: "42"},
			expected: "Track 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromSource(tt.source)
			assert.Equal(t, tt.expected, got.Title)
			assert.Equal(t, tt.source.ID, got.ID)
		})
	}
}

func TestFromSource_Artists(t *testing.T) {
	got := FromSource(Source{
		ID:      "1",
		Title:   "t",
		Artists: []string{"Miles Davis", "  ", "", "Bill Evans "},
	})
	assert.Equal(t, []string{"Miles Davis", "Bill Evans"}, got.Artists)
	assert.Equal(t, "Miles Davis, Bill Evans", got.ArtistLine())
}

func TestSameID(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{name: "equal strings", a: "123", b: "123", expected: true},
		{name: "whitespace tolerated", a: " 123", b: "123 ", expected: true},
		{name: "different ids", a: "123", b: "124", expected: false},
		{name: "empty vs non-empty", a: "", b: "1", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SameID(tt.a, tt.b))
			trk := Track{ID: tt.a}
			assert.Equal(t, tt.expected, trk.Is(tt.b))
		})
	}
}
