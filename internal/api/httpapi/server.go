// Package httpapi provides the HTTP control surface of the player:
// queue and playback operations, catalog browsing and a server-sent
// events status stream.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/app/session"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr string
}

// Server is the control API HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
}

// NewServer creates the control API server for a session.
func NewServer(cfg ServerConfig, sess *session.Manager) *Server {
	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(sess),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout; the events stream stays open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handlers.Status)
		r.Get("/events", s.handlers.Events)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handlers.Queue)
			r.Post("/", s.handlers.ReplaceQueue)
			r.Delete("/", s.handlers.ClearQueue)
			r.Post("/tracks", s.handlers.EnqueueTrack)
			r.Post("/tracks/batch", s.handlers.EnqueueTracks)
			r.Post("/play", s.handlers.PlayTrack)
			r.Post("/all", s.handlers.PlayAll)
		})

		r.Route("/playback", func(r chi.Router) {
			r.Post("/next", s.handlers.Next)
			r.Post("/previous", s.handlers.Previous)
			r.Post("/pause", s.handlers.Pause)
			r.Post("/resume", s.handlers.Resume)
			r.Post("/toggle", s.handlers.TogglePlay)
			r.Post("/loop", s.handlers.ToggleLoop)
		})

		r.Route("/play", func(r chi.Router) {
			r.Post("/album/{name}", s.handlers.PlayAlbum)
			r.Post("/playlist/{id}", s.handlers.PlayPlaylist)
			r.Post("/column/{name}/{value}", s.handlers.PlayColumn)
			r.Post("/search", s.handlers.PlaySearch)
		})

		r.Get("/albums", s.handlers.Albums)
		r.Get("/albums/{name}", s.handlers.AlbumTracks)
		r.Get("/albums/image/{trackId}", s.handlers.AlbumImage)
		r.Get("/tracks", s.handlers.Tracks)
		r.Get("/column/{name}", s.handlers.ColumnValues)
		r.Get("/column/{name}/{value}", s.handlers.ColumnTracks)
		r.Get("/search", s.handlers.Search)
		r.Get("/image/{id}", s.handlers.Image)

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", s.handlers.Playlists)
			r.Post("/", s.handlers.CreatePlaylist)
			r.Get("/{id}", s.handlers.PlaylistTracks)
			r.Post("/{id}/tracks/{trackId}", s.handlers.AddToPlaylist)
		})

		r.Post("/register", s.handlers.Register)
	})
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	zlog.Info().Msgf("control API listening: addr=%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request through the process logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zlog.Debug().Msgf("request: method=%s path=%s status=%d duration=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
