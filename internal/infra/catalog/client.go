// Package catalog provides a client for the resource/catalog service:
// album and track listings, filtered views, search, cover images and
// persisted playlists. All responses are normalized into domain types.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
	zlog "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/otobox/otobox/internal/domain/playlist"
	"github.com/otobox/otobox/internal/domain/track"
	"github.com/otobox/otobox/internal/infra/stream"
)

// Errors
var (
	ErrNotFound    = errors.New("resource not found")
	ErrUnavailable = errors.New("catalog service unavailable")
)

// DefaultCoverRef is used when the service has no image for a track.
const DefaultCoverRef = "/default_album.png"

// Config represents catalog client configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration // Zero means 15s
	MaxRetries     int
	RequestsPerSec float64 // Zero means 10
}

// Client is a resource service client with retry, circuit breaking and
// request pacing. Cover image fetches are deduplicated and cached.
type Client struct {
	baseURL string
	retry   *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	creds   stream.CredentialSource

	imageGroup singleflight.Group
	imageMu    sync.RWMutex
	imageCache map[string]string
}

// New creates a catalog client. The credential source supplies the
// session bearer token for every request.
func New(cfg Config, creds stream.CredentialSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("resource service base URL is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retry:      retryClient,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		creds:      creds,
		imageCache: make(map[string]string),
	}, nil
}

// ListAlbums returns the album summaries.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	if err := c.getJSON(ctx, "/albums", &albums); err != nil {
		return nil, errors.Wrap(err, "failed to list albums")
	}
	return albums, nil
}

// AlbumTracks returns the tracks of one album, normalized.
func (c *Client) AlbumTracks(ctx context.Context, albumName string) ([]track.Track, error) {
	var list trackList
	if err := c.getJSON(ctx, "/albums/"+url.PathEscape(albumName), &list); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch album %q", albumName)
	}
	return list.toTracks(), nil
}

// AllTracks returns the full track listing.
func (c *Client) AllTracks(ctx context.Context) ([]track.Track, error) {
	var list trackList
	if err := c.getJSON(ctx, "/tracks", &list); err != nil {
		return nil, errors.Wrap(err, "failed to fetch tracks")
	}
	return list.toTracks(), nil
}

// ColumnValues returns the distinct values of a catalog column, e.g.
// the artist names for "artists".
func (c *Client) ColumnValues(ctx context.Context, column string) ([]string, error) {
	var values []string
	if err := c.getJSON(ctx, "/column/"+url.PathEscape(column), &values); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch column %q", column)
	}
	return values, nil
}

// TracksByColumn returns the tracks matching one column value.
func (c *Client) TracksByColumn(ctx context.Context, column, value string) ([]track.Track, error) {
	path := fmt.Sprintf("/column/%s/%s", url.PathEscape(column), url.PathEscape(value))
	var list trackList
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s=%q", column, value)
	}
	return list.toTracks(), nil
}

// Search returns the tracks matching a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]track.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}
	var list trackList
	if err := c.getJSON(ctx, "/search?q="+url.QueryEscape(query), &list); err != nil {
		return nil, errors.Wrapf(err, "search failed for %q", query)
	}
	return list.toTracks(), nil
}

// ImageByID returns a data URI for the track's cover image, falling
// back to the default cover reference when the service has none.
// Concurrent fetches for the same id are collapsed and results cached
// for the session.
func (c *Client) ImageByID(ctx context.Context, id string) (string, error) {
	c.imageMu.RLock()
	if cached, ok := c.imageCache[id]; ok {
		c.imageMu.RUnlock()
		return cached, nil
	}
	c.imageMu.RUnlock()

	v, err, _ := c.imageGroup.Do(id, func() (any, error) {
		var body imageBody
		if err := c.getJSON(ctx, "/image/"+url.PathEscape(id), &body); err != nil {
			if errors.Is(err, ErrNotFound) {
				return DefaultCoverRef, nil
			}
			return "", err
		}
		if body == "" {
			return DefaultCoverRef, nil
		}
		return "data:image/jpeg;base64," + string(body), nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch image %q", id)
	}

	uri := v.(string)
	c.imageMu.Lock()
	c.imageCache[id] = uri
	c.imageMu.Unlock()
	return uri, nil
}

// AlbumImage returns the cover for an album, addressed by the id of one
// of its tracks.
func (c *Client) AlbumImage(ctx context.Context, trackID string) (string, error) {
	var body imageBody
	if err := c.getJSON(ctx, "/albums/image/"+url.PathEscape(trackID), &body); err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultCoverRef, nil
		}
		return "", errors.Wrapf(err, "failed to fetch album image for track %q", trackID)
	}
	if body == "" {
		return DefaultCoverRef, nil
	}
	return "data:image/jpeg;base64," + string(body), nil
}

// ResolveCovers fills the Cover field of tracks that lack one. Eager
// resolution is a performance optimization for list views, never a
// correctness requirement.
func (c *Client) ResolveCovers(ctx context.Context, tracks []track.Track) []track.Track {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	out := make([]track.Track, len(tracks))
	copy(out, tracks)
	for i := range out {
		if out[i].Cover != "" {
			continue
		}
		i := i
		g.Go(func() error {
			uri, err := c.ImageByID(ctx, out[i].ID)
			if err != nil {
				zlog.Debug().Err(err).Msgf("catalog: cover fetch failed for track=%s", out[i].ID)
				return nil // best effort
			}
			out[i].Cover = uri
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Playlists returns all persisted playlists.
func (c *Client) Playlists(ctx context.Context) ([]playlist.Playlist, error) {
	var raw []rawPlaylist
	if err := c.getJSON(ctx, "/playlist", &raw); err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	out := make([]playlist.Playlist, 0, len(raw))
	for i := range raw {
		out = append(out, raw[i].toPlaylist())
	}
	return out, nil
}

// PlaylistTracks returns the tracks of one persisted playlist.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	var list trackList
	if err := c.getJSON(ctx, "/playlist/"+url.PathEscape(playlistID), &list); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch playlist %q", playlistID)
	}
	return list.toTracks(), nil
}

// CreatePlaylist creates a named playlist and returns it.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (playlist.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return playlist.Playlist{}, errors.New("playlist name is required")
	}
	body, err := c.do(ctx, http.MethodPost, "/playlist?name="+url.QueryEscape(name))
	if err != nil {
		return playlist.Playlist{}, errors.Wrapf(err, "failed to create playlist %q", name)
	}
	var raw rawPlaylist
	if err := json.Unmarshal(body, &raw); err != nil {
		return playlist.Playlist{}, errors.Wrap(err, "failed to decode playlist")
	}
	return raw.toPlaylist(), nil
}

// AddTrackToPlaylist adds a track to a persisted playlist.
func (c *Client) AddTrackToPlaylist(ctx context.Context, playlistID, trackID string) error {
	path := fmt.Sprintf("/playlist/%s/addTrack/%s", url.PathEscape(playlistID), url.PathEscape(trackID))
	if _, err := c.do(ctx, http.MethodPost, path); err != nil {
		return errors.Wrapf(err, "failed to add track %s to playlist %s", trackID, playlistID)
	}
	return nil
}

// RemoveTrackFromPlaylist removes a track from a persisted playlist.
func (c *Client) RemoveTrackFromPlaylist(ctx context.Context, playlistID, trackID string) error {
	path := fmt.Sprintf("/playlist/%s/removeTrack/%s", url.PathEscape(playlistID), url.PathEscape(trackID))
	if _, err := c.do(ctx, http.MethodDelete, path); err != nil {
		return errors.Wrapf(err, "failed to remove track %s from playlist %s", trackID, playlistID)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", path)
	}
	return nil
}

// do performs one paced, circuit-broken, retried request and returns
// the response body.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "request cancelled while pacing")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.creds != nil {
			if cred, ok := c.creds.Credential(); ok {
				req.Header.Set("Authorization", "Bearer "+cred)
			}
		}

		resp, err := c.retry.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "request failed: %s %s", method, path)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response body")
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return []byte(nil), nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.Mark(errors.Newf("%s: status 404", path), ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, errors.Newf("%s %s: status=%d body=%s",
				method, path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Mark(err, ErrUnavailable)
		}
		return nil, err
	}
	return result.([]byte), nil
}
