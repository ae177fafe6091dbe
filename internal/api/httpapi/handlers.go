package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/app/notification"
	"github.com/otobox/otobox/internal/app/queue"
	"github.com/otobox/otobox/internal/app/session"
	"github.com/otobox/otobox/internal/infra/auth"
	"github.com/otobox/otobox/internal/infra/catalog"
)

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

// Handlers implements the control API endpoints on top of the session
// manager.
type Handlers struct {
	session *session.Manager
}

// NewHandlers creates the API handlers.
func NewHandlers(sess *session.Manager) *Handlers {
	return &Handlers{session: sess}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Debug().Err(err).Msg("httpapi: failed to encode response")
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrRejected):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrNoTracks),
		errors.Is(err, queue.ErrEmptyList),
		errors.Is(err, queue.ErrIndexOutOfRange),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid request body"), errBadRequest)
	}
	return nil
}

// indexParam reads the optional ?index= query parameter, defaulting to 0.
func indexParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("index")
	if raw == "" {
		return 0, nil
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Mark(errors.Newf("invalid index %q", raw), errBadRequest)
	}
	return index, nil
}

// Status returns the current session snapshot.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// Queue returns the queued tracks and playback flags.
func (h *Handlers) Queue(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Status()
	writeJSON(w, http.StatusOK, queueResponse{
		Tracks:  fromDomainList(h.session.Queue()),
		Index:   snap.Index,
		Playing: snap.Playing,
		Looping: snap.Looping,
	})
}

// ReplaceQueue replaces the queue with the request tracks and plays at
// the given index.
func (h *Handlers) ReplaceQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.PlayTracks(toDomainList(req.Tracks), req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// ClearQueue empties the queue and returns the removed tracks.
func (h *Handlers) ClearQueue(w http.ResponseWriter, r *http.Request) {
	removed := h.session.Clear()
	writeJSON(w, http.StatusOK, tracksRequest{Tracks: fromDomainList(removed)})
}

// EnqueueTrack appends one track unless already queued.
func (h *Handlers) EnqueueTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	added := 0
	if h.session.Enqueue(req.Track.toDomain()) {
		added = 1
	}
	writeJSON(w, http.StatusOK, addedResponse{Added: added})
}

// EnqueueTracks appends all tracks not already queued.
func (h *Handlers) EnqueueTracks(w http.ResponseWriter, r *http.Request) {
	var req tracksRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	added := h.session.EnqueueMany(toDomainList(req.Tracks))
	writeJSON(w, http.StatusOK, addedResponse{Added: added})
}

// PlayTrack plays the track now, enqueueing it first if needed.
func (h *Handlers) PlayTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.session.PlayOrEnqueue(req.Track.toDomain())
	writeJSON(w, http.StatusOK, h.session.Status())
}

// PlayAll replaces the queue and plays from the beginning.
func (h *Handlers) PlayAll(w http.ResponseWriter, r *http.Request) {
	var req tracksRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.PlayAll(toDomainList(req.Tracks)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// PlayAlbum loads an album from the catalog and plays it.
func (h *Handlers) PlayAlbum(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.PlayAlbum(r.Context(), chi.URLParam(r, "name"), index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// PlayPlaylist loads a persisted playlist and plays it.
func (h *Handlers) PlayPlaylist(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.PlayPlaylist(r.Context(), chi.URLParam(r, "id"), index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// PlayColumn plays a filtered catalog view.
func (h *Handlers) PlayColumn(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	column := chi.URLParam(r, "name")
	value := chi.URLParam(r, "value")
	if err := h.session.PlayColumn(r.Context(), column, value, index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// PlaySearch plays the results of a free-text search.
func (h *Handlers) PlaySearch(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.PlaySearch(r.Context(), r.URL.Query().Get("q"), index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// Next advances to the next track.
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	h.session.Next()
	writeJSON(w, http.StatusOK, h.session.Status())
}

// Previous steps back to the previous track.
func (h *Handlers) Previous(w http.ResponseWriter, r *http.Request) {
	h.session.Previous()
	writeJSON(w, http.StatusOK, h.session.Status())
}

// Pause clears the playing intent.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	h.session.Pause()
	writeJSON(w, http.StatusOK, h.session.Status())
}

// Resume sets the playing intent.
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	h.session.Resume()
	writeJSON(w, http.StatusOK, h.session.Status())
}

// TogglePlay flips the playing intent.
func (h *Handlers) TogglePlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, flagResponse{Enabled: h.session.TogglePlay()})
}

// ToggleLoop flips the loop flag.
func (h *Handlers) ToggleLoop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, flagResponse{Enabled: h.session.ToggleLoop()})
}

// Albums lists the catalog's albums.
func (h *Handlers) Albums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.session.Catalog().ListAlbums(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// AlbumTracks lists one album's tracks.
func (h *Handlers) AlbumTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.session.Catalog().AlbumTracks(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainList(tracks))
}

// Tracks lists the full catalog.
func (h *Handlers) Tracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.session.Catalog().AllTracks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainList(tracks))
}

// ColumnValues lists the distinct values of a catalog column.
func (h *Handlers) ColumnValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.session.Catalog().ColumnValues(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// ColumnTracks lists the tracks matching one column value.
func (h *Handlers) ColumnTracks(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "name")
	value := chi.URLParam(r, "value")
	tracks, err := h.session.Catalog().TracksByColumn(r.Context(), column, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainList(tracks))
}

// Search runs a free-text catalog search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.session.Catalog().Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainList(tracks))
}

// Image returns a track's cover image reference.
func (h *Handlers) Image(w http.ResponseWriter, r *http.Request) {
	uri, err := h.session.Catalog().ImageByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image": uri})
}

// AlbumImage returns an album cover, addressed by one of its track ids.
func (h *Handlers) AlbumImage(w http.ResponseWriter, r *http.Request) {
	uri, err := h.session.Catalog().AlbumImage(r.Context(), chi.URLParam(r, "trackId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image": uri})
}

// Playlists lists the persisted playlists.
func (h *Handlers) Playlists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.session.Playlists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]PlaylistPayload, 0, len(lists))
	for _, p := range lists {
		out = append(out, fromPlaylist(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreatePlaylist creates a persisted playlist named by ?name=.
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	created, err := h.session.CreatePlaylist(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromPlaylist(created))
}

// PlaylistTracks lists the tracks of one persisted playlist.
func (h *Handlers) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.session.Catalog().PlaylistTracks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDomainList(tracks))
}

// AddToPlaylist adds a track to a persisted playlist.
func (h *Handlers) AddToPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")
	trackID := chi.URLParam(r, "trackId")
	if err := h.session.AddToPlaylist(r.Context(), playlistID, trackID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Register creates a new account on the auth service.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// Events streams status snapshots as server-sent events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming is not supported"))
		return
	}

	stream := notification.NewChanStream(16)
	id := h.session.Subscribe(stream)
	defer h.session.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-stream.C:
			data, err := json.Marshal(snap)
			if err != nil {
				zlog.Debug().Err(err).Msg("httpapi: failed to encode snapshot")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
