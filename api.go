package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/eventlog"
	"github.com/voxtype/voxtype/internal/types"
)

// historyPath is where the dictation history lives inside the data directory.
func historyPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir(), "history.jsonl")
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleAPIStatus)
	mux.HandleFunc("GET /api/devices", s.handleAPIDevices)
	mux.HandleFunc("GET /api/models", s.handleAPIModels)
	mux.HandleFunc("GET /api/history", s.handleAPIHistory)
	mux.HandleFunc("POST /api/models/{id}/download", s.handleAPIModelDownload)
	mux.HandleFunc("DELETE /api/models/{id}", s.handleAPIModelDelete)

	mux.HandleFunc("/", s.handleStatic)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// --- API response helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// --- API handlers ---

// handleAPIStatus handles GET /api/status.
func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.buildStatus())
}

// buildStatus returns the current daemon status.
func (s *Server) buildStatus() types.StatusResponse {
	return types.StatusResponse{
		Type:     "status",
		Mode:     s.machine.Mode().String(),
		Session:  s.sessions.State(),
		Model:    s.config.SelectedModel(),
		Platform: runtime.GOOS,
		Version:  s.version.Info(),
	}
}

// handleAPIDevices handles GET /api/devices.
func (s *Server) handleAPIDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, audio.ListDevices())
}

// handleAPIModels handles GET /api/models.
func (s *Server) handleAPIModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.library.List())
}

// handleAPIHistory handles GET /api/history. Query parameters: limit,
// offset, and filter ("session" or "model").
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}
	filter := eventlog.TypeFilter(r.URL.Query().Get("filter"))
	switch filter {
	case eventlog.FilterAll, eventlog.FilterSession, eventlog.FilterModel:
	default:
		s.writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	entries, hasMore, err := eventlog.ReadLast(historyPath(s.config), limit, offset, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events":   entries,
		"has_more": hasMore,
	})
}

// handleAPIModelDownload handles POST /api/models/{id}/download.
func (s *Server) handleAPIModelDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.library.Download(r.Context(), id); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "download_started", "model": id})
}

// handleAPIModelDelete handles DELETE /api/models/{id}.
func (s *Server) handleAPIModelDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.library.Delete(id); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "model": id})
}
