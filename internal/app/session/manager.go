// Package session provides the playback session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/app/notification"
	"github.com/otobox/otobox/internal/app/playback"
	"github.com/otobox/otobox/internal/app/queue"
	"github.com/otobox/otobox/internal/app/session/state"
	"github.com/otobox/otobox/internal/domain/playlist"
	"github.com/otobox/otobox/internal/domain/track"
	"github.com/otobox/otobox/internal/infra/auth"
	"github.com/otobox/otobox/internal/infra/catalog"
	"github.com/otobox/otobox/internal/infra/config"
	"github.com/otobox/otobox/internal/infra/stream"
)

var ErrNoTracks = errors.New("selection has no tracks")

// Manager owns the playback session: the queue store, the engine
// binding and the service clients, plus status broadcasting to
// subscribers. All mutating operations publish a fresh status snapshot.
type Manager struct {
	config *config.Config

	sessionID string

	// Components
	creds        *auth.Store
	auth         *auth.Client
	catalog      *catalog.Client
	store        *queue.Store
	binding      *playback.Binding
	notification *notification.Manager

	publishMu     sync.Mutex
	lastPublished state.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager wired to the given media output.
func NewManager(cfg *config.Config, output playback.Output) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	credStore := auth.NewStore()

	authClient, err := auth.NewClient(auth.Config{BaseURL: cfg.Auth.BaseURL}, credStore)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create auth client")
	}

	catalogClient, err := catalog.New(catalog.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		RequestTimeout: cfg.CatalogTimeout(),
		MaxRetries:     cfg.Catalog.MaxRetries,
		RequestsPerSec: cfg.Catalog.RequestsPerSec,
	}, credStore)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create catalog client")
	}

	delivery, err := stream.NewDeliveryFromConfig(cfg.Stream.Delivery, cfg.Stream.Settings)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create stream delivery")
	}

	resolver, err := stream.NewResolver(stream.Config{
		BaseURL:      cfg.Catalog.BaseURL,
		TokenTimeout: cfg.TokenTimeout(),
	}, credStore, delivery)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create stream resolver")
	}

	store := queue.NewStore()

	return &Manager{
		config:       cfg,
		sessionID:    uuid.New().String(),
		creds:        credStore,
		auth:         authClient,
		catalog:      catalogClient,
		store:        store,
		binding:      playback.NewBinding(store, resolver, output),
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}, nil
}

// Start obtains the session credential, starts the engine binding and
// begins broadcasting status changes.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.auth.Login(ctx, m.config.Auth.Username, m.config.Auth.Password); err != nil {
		return errors.Wrap(err, "failed to establish session credential")
	}
	zlog.Info().Msgf("session started: session_id=%s", m.sessionID)

	m.binding.Start()
	go m.run()
	return nil
}

// Stop shuts the session down.
func (m *Manager) Stop() {
	m.cancel()
	<-m.done
	m.binding.Close()
	m.store.Close()
	m.notification.Close()
	m.creds.Clear()
	zlog.Info().Msgf("session stopped: session_id=%s", m.sessionID)
}

// run publishes a status snapshot whenever the observable state changes.
// Operations publish immediately; the ticker catches asynchronous
// transitions such as stream errors and natural track endings.
func (m *Manager) run() {
	defer close(m.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.publishIfChanged()
		}
	}
}

// Status returns the current session snapshot.
func (m *Manager) Status() state.Snapshot {
	snap := state.Snapshot{
		SessionID: m.sessionID,
		State:     m.binding.State().String(),
		Index:     m.store.Position(),
		QueueLen:  m.store.Len(),
		Playing:   m.store.IsPlaying(),
		Looping:   m.store.IsLooping(),
		Epoch:     m.store.Epoch(),
		UpdatedAt: time.Now(),
	}
	if t, ok := m.binding.Current(); ok {
		snap.Track = state.FromTrack(t)
	}
	if err := m.binding.LastError(); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// Queue returns a copy of the queued tracks.
func (m *Manager) Queue() []track.Track {
	return m.store.Snapshot()
}

// Subscribe registers a status stream and immediately sends the current
// snapshot to it.
func (m *Manager) Subscribe(s notification.Stream) string {
	id := m.notification.Subscribe(s)
	if err := m.notification.Send(id, m.Status()); err != nil {
		zlog.Debug().Err(err).Msg("session: initial status send failed")
	}
	return id
}

// Unsubscribe removes a status stream.
func (m *Manager) Unsubscribe(id string) {
	m.notification.Unsubscribe(id)
}

// Catalog exposes the catalog client for browse operations.
func (m *Manager) Catalog() *catalog.Client {
	return m.catalog
}

// Register creates a new account on the auth service.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	return m.auth.Register(ctx, username, password)
}

// PlayTracks replaces the queue with the given tracks and starts
// playing at index.
func (m *Manager) PlayTracks(tracks []track.Track, index int) error {
	if err := m.store.ReplaceAndPlay(tracks, index); err != nil {
		return err
	}
	m.publish()
	return nil
}

// PlayAlbum loads an album from the catalog and plays it from index.
func (m *Manager) PlayAlbum(ctx context.Context, albumName string, index int) error {
	tracks, err := m.catalog.AlbumTracks(ctx, albumName)
	if err != nil {
		return err
	}
	return m.playFetched(ctx, tracks, index)
}

// PlayPlaylist loads a persisted playlist and plays it from index.
func (m *Manager) PlayPlaylist(ctx context.Context, playlistID string, index int) error {
	tracks, err := m.catalog.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return err
	}
	return m.playFetched(ctx, tracks, index)
}

// PlayColumn loads a filtered view (e.g. one artist's tracks) and plays
// it from index.
func (m *Manager) PlayColumn(ctx context.Context, column, value string, index int) error {
	tracks, err := m.catalog.TracksByColumn(ctx, column, value)
	if err != nil {
		return err
	}
	return m.playFetched(ctx, tracks, index)
}

// PlaySearch plays the results of a free-text search from index.
func (m *Manager) PlaySearch(ctx context.Context, query string, index int) error {
	tracks, err := m.catalog.Search(ctx, query)
	if err != nil {
		return err
	}
	return m.playFetched(ctx, tracks, index)
}

func (m *Manager) playFetched(ctx context.Context, tracks []track.Track, index int) error {
	if len(tracks) == 0 {
		return ErrNoTracks
	}
	if m.config.Catalog.EagerCoverFetch {
		tracks = m.catalog.ResolveCovers(ctx, tracks)
	}
	if err := m.store.ReplaceAndPlay(tracks, index); err != nil {
		return err
	}
	m.publish()
	return nil
}

// Enqueue appends a track unless it is already queued. It reports
// whether the track was added.
func (m *Manager) Enqueue(t track.Track) bool {
	added := m.store.EnqueueOne(t)
	if added {
		m.publish()
	}
	return added
}

// EnqueueMany appends all tracks not already queued and returns the
// number added.
func (m *Manager) EnqueueMany(tracks []track.Track) int {
	added := m.store.EnqueueMany(tracks)
	if added > 0 {
		m.publish()
	}
	return added
}

// PlayOrEnqueue plays the track immediately, enqueueing it first when
// it is not yet in the queue.
func (m *Manager) PlayOrEnqueue(t track.Track) {
	m.store.PlayOrEnqueueAndPlay(t)
	m.publish()
}

// PlayAll replaces the queue with the given tracks and plays from the
// beginning, keeping the current loop setting.
func (m *Manager) PlayAll(tracks []track.Track) error {
	if err := m.store.PlayAllReplacing(tracks); err != nil {
		return err
	}
	m.publish()
	return nil
}

// Next advances to the next track, wrapping when looping.
func (m *Manager) Next() {
	m.store.Advance()
	m.publish()
}

// Previous steps back to the previous track, wrapping when looping.
func (m *Manager) Previous() {
	m.store.Retreat()
	m.publish()
}

// SetPlaying sets the playing intent.
func (m *Manager) SetPlaying(playing bool) {
	m.store.SetPlaying(playing)
	m.publish()
}

// Pause clears the playing intent.
func (m *Manager) Pause() { m.SetPlaying(false) }

// Resume sets the playing intent.
func (m *Manager) Resume() { m.SetPlaying(true) }

// TogglePlay flips the playing intent and returns the new value.
func (m *Manager) TogglePlay() bool {
	playing := !m.store.IsPlaying()
	m.SetPlaying(playing)
	return playing
}

// ToggleLoop flips the loop flag and returns the new value.
func (m *Manager) ToggleLoop() bool {
	looping := m.store.ToggleLoop()
	m.publish()
	return looping
}

// Clear empties the queue and returns the removed tracks. The playing
// intent and the currently bound track are left untouched.
func (m *Manager) Clear() []track.Track {
	removed := m.store.ClearQueue()
	m.publish()
	return removed
}

// Playlists lists the persisted playlists.
func (m *Manager) Playlists(ctx context.Context) ([]playlist.Playlist, error) {
	return m.catalog.Playlists(ctx)
}

// CreatePlaylist creates a persisted playlist.
func (m *Manager) CreatePlaylist(ctx context.Context, name string) (playlist.Playlist, error) {
	return m.catalog.CreatePlaylist(ctx, name)
}

// AddToPlaylist adds a track to a persisted playlist.
func (m *Manager) AddToPlaylist(ctx context.Context, playlistID, trackID string) error {
	return m.catalog.AddTrackToPlaylist(ctx, playlistID, trackID)
}

// publish broadcasts the current snapshot unconditionally.
func (m *Manager) publish() {
	m.publishMu.Lock()
	snap := m.Status()
	m.lastPublished = snap
	m.publishMu.Unlock()
	m.notification.Broadcast(snap)
}

// publishIfChanged broadcasts only when the observable state moved
// since the last publish.
func (m *Manager) publishIfChanged() {
	m.publishMu.Lock()
	snap := m.Status()
	if snap.Same(m.lastPublished) {
		m.publishMu.Unlock()
		return
	}
	m.lastPublished = snap
	m.publishMu.Unlock()
	m.notification.Broadcast(snap)
}
