package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otobox/otobox/internal/app/playback"
	"github.com/otobox/otobox/internal/app/session"
	"github.com/otobox/otobox/internal/infra/config"
)

type nullOutput struct {
	events chan playback.OutputEvent
}

func newNullOutput() *nullOutput {
	return &nullOutput{events: make(chan playback.OutputEvent, 16)}
}

func (o *nullOutput) Load(context.Context, string) error { return nil }

func (o *nullOutput) Play(context.Context) error {
	o.events <- playback.OutputEvent{Type: playback.OutputStarted}
	return nil
}

func (o *nullOutput) Pause(context.Context) error {
	o.events <- playback.OutputEvent{Type: playback.OutputPaused}
	return nil
}

func (o *nullOutput) Stop(context.Context) error                  { return nil }
func (o *nullOutput) Seek(context.Context, time.Duration) error   { return nil }
func (o *nullOutput) Position(context.Context) (time.Duration, error) { return 0, nil }
func (o *nullOutput) Events() <-chan playback.OutputEvent         { return o.events }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			fmt.Fprint(w, `{"token": "session-jwt"}`)
		case r.URL.Path == "/albums/Blue":
			fmt.Fprint(w, `[{"id": 1, "title": "So What"}, {"id": 2, "title": "Freddie Freeloader"}]`)
		case r.URL.Path == "/search" && r.URL.Query().Get("q") == "so":
			fmt.Fprint(w, `[{"id": 1, "title": "So What"}]`)
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/stream/token/"):
			fmt.Fprint(w, `{"token": "st"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Auth:    config.AuthConfig{BaseURL: backend.URL, Username: "u", Password: "p"},
		Catalog: config.CatalogConfig{BaseURL: backend.URL},
		Stream:  config.StreamConfig{Delivery: "flac"},
	}

	sess, err := session.NewManager(cfg, newNullOutput())
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Stop)

	api := httptest.NewServer(NewServer(ServerConfig{}, sess).Handler())
	t.Cleanup(api.Close)
	return api
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestStatusEndpoint(t *testing.T) {
	api := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, api.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "idle", snap["state"])
	assert.NotEmpty(t, snap["sessionId"])
}

func TestReplaceQueueAndReadBack(t *testing.T) {
	api := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, api.URL+"/api/queue",
		`{"tracks": [{"id": "1", "title": "a"}, {"id": "2", "title": "b"}], "index": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, api.URL+"/api/queue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var q queueResponse
	require.NoError(t, json.Unmarshal(body, &q))
	require.Len(t, q.Tracks, 2)
	assert.Equal(t, 1, q.Index)
	assert.True(t, q.Playing)
}

func TestReplaceQueueValidation(t *testing.T) {
	api := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, api.URL+"/api/queue", `{"tracks": [], "index": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty list is rejected")

	resp, _ = doJSON(t, http.MethodPost, api.URL+"/api/queue",
		`{"tracks": [{"id": "1"}], "index": 9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "out of range index is rejected")

	resp, _ = doJSON(t, http.MethodPost, api.URL+"/api/queue", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnqueueDeduplicates(t *testing.T) {
	api := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, api.URL+"/api/queue/tracks",
		`{"track": {"id": "1", "title": "a"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var added addedResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 1, added.Added)

	_, body = doJSON(t, http.MethodPost, api.URL+"/api/queue/tracks",
		`{"track": {"id": "1", "title": "a"}}`)
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 0, added.Added)

	_, body = doJSON(t, http.MethodPost, api.URL+"/api/queue/tracks/batch",
		`{"tracks": [{"id": "1"}, {"id": "2"}]}`)
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 1, added.Added)
}

func TestPlayAlbumEndpoint(t *testing.T) {
	api := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, api.URL+"/api/play/album/Blue?index=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, float64(1), snap["index"])
	assert.Equal(t, float64(2), snap["queueLen"])

	resp, _ = doJSON(t, http.MethodPost, api.URL+"/api/play/album/Missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaybackEndpoints(t *testing.T) {
	api := newTestServer(t)

	_, _ = doJSON(t, http.MethodPost, api.URL+"/api/queue",
		`{"tracks": [{"id": "1"}, {"id": "2"}], "index": 0}`)

	resp, body := doJSON(t, http.MethodPost, api.URL+"/api/playback/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, float64(1), snap["index"])

	resp, body = doJSON(t, http.MethodPost, api.URL+"/api/playback/loop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flag flagResponse
	require.NoError(t, json.Unmarshal(body, &flag))
	assert.True(t, flag.Enabled)

	resp, _ = doJSON(t, http.MethodPost, api.URL+"/api/playback/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, api.URL+"/api/queue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSearchProxy(t *testing.T) {
	api := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, api.URL+"/api/search?q=so", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tracks []TrackPayload
	require.NoError(t, json.Unmarshal(body, &tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, "So What", tracks[0].Title)
}
