// Package remote serves the HTTP control API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/beat"
	"github.com/jscyril/lightshow_player/internal/lights"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Jukebox is the transport the API drives. *player.Jukebox implements it.
type Jukebox interface {
	PlayIndex(index int) error
	Resume() error
	Pause() error
	Rewind() error
	Skip() error
	Shuffle() error
	SetLooping(looping bool)
	SetVolume(level float64) error
	Seek(pos time.Duration) error
	State() api.PlaybackState
	Songs() []*api.Song
}

// Grid is satisfied by *lights.Grid
type Grid interface {
	Snapshot() [lights.Slots]lights.Box
}

// Channels is satisfied by *beat.Manager
type Channels interface {
	Channels() ([]beat.ChannelStatus, error)
}

// Searcher is satisfied by *library.Library
type Searcher interface {
	Search(query string) []*api.Song
}

// Options configures the server. Grid, Channels and Library are optional.
type Options struct {
	Addr           string
	AllowedOrigins []string
	VolumeDebounce time.Duration
	Jukebox        Jukebox
	Grid           Grid
	Channels       Channels
	Library        Searcher
	Logger         zerolog.Logger
}

// Server is the control API
type Server struct {
	opts    Options
	logger  zerolog.Logger
	handler http.Handler

	volumeMu sync.Mutex
	volume   func(f func())
}

// New builds the routes
func New(opts Options) *Server {
	if opts.VolumeDebounce <= 0 {
		opts.VolumeDebounce = 100 * time.Millisecond
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "remote").Logger(),
		volume: debounce.New(opts.VolumeDebounce),
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.logRequests)

	routes := router.PathPrefix("/api").Subrouter()
	routes.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	routes.HandleFunc("/songs", s.handleSongs).Methods(http.MethodGet)
	routes.HandleFunc("/lights", s.handleLights).Methods(http.MethodGet)
	routes.HandleFunc("/play", s.handlePlay).Methods(http.MethodPost)
	routes.HandleFunc("/pause", s.transport(opts.Jukebox.Pause)).Methods(http.MethodPost)
	routes.HandleFunc("/resume", s.transport(opts.Jukebox.Resume)).Methods(http.MethodPost)
	routes.HandleFunc("/rewind", s.transport(opts.Jukebox.Rewind)).Methods(http.MethodPost)
	routes.HandleFunc("/skip", s.transport(opts.Jukebox.Skip)).Methods(http.MethodPost)
	routes.HandleFunc("/shuffle", s.transport(opts.Jukebox.Shuffle)).Methods(http.MethodPost)
	routes.HandleFunc("/seek", s.handleSeek).Methods(http.MethodPost)
	routes.HandleFunc("/loop", s.handleLoop).Methods(http.MethodPut)
	routes.HandleFunc("/volume", s.handleVolume).Methods(http.MethodPut)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return s
}

// Handler returns the CORS wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("remote control listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	api.PlaybackState
	Channels []beat.ChannelStatus `json:"channels,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{PlaybackState: s.opts.Jukebox.State()}
	if s.opts.Channels != nil {
		channels, err := s.opts.Channels.Channels()
		if err != nil {
			s.logger.Debug().Err(err).Msg("channel status unavailable")
		}
		resp.Channels = channels
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSongs lists the queue, or library matches for ?q=
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" && s.opts.Library != nil {
		writeJSON(w, http.StatusOK, s.opts.Library.Search(q))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Jukebox.Songs())
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	if s.opts.Grid == nil {
		writeError(w, http.StatusNotFound, errors.New("light grid disabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Grid.Snapshot())
}

type playRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var err error
	if req.Index != nil {
		err = s.opts.Jukebox.PlayIndex(*req.Index)
	} else {
		err = s.opts.Jukebox.Resume()
	}
	s.reply(w, err)
}

type seekRequest struct {
	PositionMS int64 `json:"position_ms"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PositionMS < 0 {
		writeError(w, http.StatusBadRequest, errors.New("position_ms must not be negative"))
		return
	}
	s.reply(w, s.opts.Jukebox.Seek(time.Duration(req.PositionMS)*time.Millisecond))
}

type loopRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.opts.Jukebox.SetLooping(req.Enabled)
	s.reply(w, nil)
}

type volumeRequest struct {
	Level *float64 `json:"level"`
}

// handleVolume validates now and applies the last level once a burst of
// slider updates settles.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Level == nil || *req.Level < 0 || *req.Level > 1 {
		writeError(w, http.StatusBadRequest, playerrors.ErrInvalidVolume)
		return
	}

	level := *req.Level
	s.volumeMu.Lock()
	s.volume(func() {
		if err := s.opts.Jukebox.SetVolume(level); err != nil {
			s.logger.Warn().Err(err).Float64("level", level).Msg("set volume")
		}
	})
	s.volumeMu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]float64{"level": level})
}

func (s *Server) transport(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, op())
	}
}

// reply writes the playback state, or the error with its status code
func (s *Server) reply(w http.ResponseWriter, err error) {
	if err != nil {
		code := statusCode(err)
		if code == http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("request failed")
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Jukebox.State())
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, playerrors.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, playerrors.ErrInvalidVolume):
		return http.StatusBadRequest
	case errors.Is(err, playerrors.ErrEmptyQueue),
		errors.Is(err, playerrors.ErrNoSongLoaded),
		errors.Is(err, playerrors.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
