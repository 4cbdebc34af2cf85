package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mangabridge/internal/catalog"
	"mangabridge/internal/logging"
	"mangabridge/internal/resolution"
	"mangabridge/internal/services"
)

const maxBodyBytes = 1 << 20

// ArcsResponse lists the named arcs for a title.
type ArcsResponse struct {
	Title string        `json:"title"`
	Arcs  []catalog.Arc `json:"arcs"`
}

// HealthResponse summarises which collaborators are configured.
type HealthResponse struct {
	Status          string `json:"status"`
	AIEnabled       bool   `json:"ai_enabled"`
	MangaDexEnabled bool   `json:"mangadex_enabled"`
	Policy          string `json:"ai_failure_policy"`
	CachePath       string `json:"cache_path"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req resolution.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "resolve", "invalid request body", err))
		return
	}
	result, err := s.app.Pipeline.Resolve(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleValidate answers 200 for both valid and out-of-range episodes so
// callers can read the total from the body; other failures use their status.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	episode, err := strconv.Atoi(strings.TrimSpace(query.Get("episode")))
	if err != nil {
		s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "validate", "episode must be an integer", nil))
		return
	}
	result, err := s.app.Gate.Validate(r.Context(), query.Get("title"), episode)
	if err != nil && !errors.Is(err, services.ErrEpisodeOutOfRange) {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identity, err := s.app.Resolver.Resolve(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleArcs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "arcs", "title is required", nil))
		return
	}
	arcs, name, ok := s.app.Catalog.Snapshot().Arcs(title)
	if !ok {
		s.writeFailure(w, r, services.Wrap(services.ErrNotFound, "api", "arcs", fmt.Sprintf("no arcs known for %q", title), nil))
		return
	}
	writeJSON(w, http.StatusOK, ArcsResponse{Title: name, Arcs: arcs})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	results, err := s.app.AniList.SearchList(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeFailure(w, r, services.Wrap(services.ErrTransient, "api", "search", "anilist search failed", err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	results, err := s.app.AniList.Trending(r.Context())
	if err != nil {
		s.writeFailure(w, r, services.Wrap(services.ErrTransient, "api", "trending", "anilist trending failed", err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.app.Store.History(r.Context())
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodDelete:
		if _, err := s.app.Store.ClearHistory(r.Context()); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		AIEnabled:       s.app.Lookup != nil,
		MangaDexEnabled: s.app.MangaDex != nil,
		Policy:          s.app.Pipeline.Policy(),
		CachePath:       s.app.Config.CacheDBPath(),
	})
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String(logging.FieldErrorHint, "check upstream availability and model configuration"),
			logging.String(logging.FieldImpact, "request returned an error"),
			logging.Error(err),
		)
	}
	writeJSON(w, status, services.NewFailure(err))
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
