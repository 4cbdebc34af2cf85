package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mangabridge/internal/app"
	"mangabridge/internal/logging"
)

// Server serves the JSON API for one App.
type Server struct {
	app    *app.App
	bind   string
	token  string
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds the API server. It does not listen until Start.
func New(a *app.App, logger *slog.Logger) (*Server, error) {
	if a == nil || a.Config == nil {
		return nil, errors.New("server requires an application")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		app:      a,
		bind:     strings.TrimSpace(a.Config.Server.Bind),
		token:    a.Config.Server.Token,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		lockPath: a.Config.LockPath(),
	}
	s.lock = flock.New(s.lockPath)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/validate", s.handleValidate)
	mux.HandleFunc("/api/seasons", s.handleSeasons)
	mux.HandleFunc("/api/arcs", s.handleArcs)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/trending", s.handleTrending)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/health", s.handleHealth)
	s.handler = authMiddleware(s.token, mux)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Two model tiers plus enrichment can take a while.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start takes the instance lock and begins serving in the background. The
// server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mangabridge server is already running (lock %s)", s.lockPath)
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
		logging.String("lock", s.lockPath),
	)
	return nil
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and releases the instance lock. It is safe to
// call more than once.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.lock.Locked() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release server lock", logging.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
