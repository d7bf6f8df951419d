package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluxlab/curator/internal/catalog"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		WorkerRunning: s.control.Running(),
	})
}

// handleStatus handles GET /status: the observable pipeline state plus the
// session selection, in one payload.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"pipeline": s.state.Snapshot(),
		"session":  s.session.Snapshot(),
		"running":  s.control.Running(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Start(r.Context()); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ControlResponse{Running: true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.control.Stop()
	respondJSON(w, http.StatusOK, ControlResponse{Running: false})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := s.client.Login(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, http.StatusBadGateway, "login failed: "+err.Error())
		return
	}
	s.session.SetLogin(req.Username)
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Logout(r.Context()); err != nil {
		s.logger.Warn("remote logout failed", "error", err)
	}
	s.session.ClearLogin()
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleSetContext switches the active project context. The loop picks the
// new selection up before its next record creation, mid-cycle included.
func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Context == "" {
		s.writeError(w, http.StatusBadRequest, "context is required")
		return
	}

	if err := s.client.SetContext(r.Context(), req.Context); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.session.SetContext(req.Context)
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetCollection(w http.ResponseWriter, r *http.Request) {
	var req CollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Collection == "" {
		s.writeError(w, http.StatusBadRequest, "collection is required")
		return
	}
	s.session.SetCollection(req.Collection)
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client.ListProjects(r.Context())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": projects})
}

func (s *Server) handleListCollectionItems(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	items, err := s.client.ListCollectionItems(r.Context(), collectionID, s.session.Snapshot().Context)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.client.TaskStatus(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		s.writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := s.client.UpdateRecord(r.Context(), chi.URLParam(r, "recordID"), fields); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.client.DeleteRecord(r.Context(), chi.URLParam(r, "recordID")); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryCycles(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := s.history.RecentCycles(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (s *Server) handleHistoryCycleRecords(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	records, err := s.history.CycleRecords(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	records, err := s.history.EntryRecords(r.Context(), chi.URLParam(r, "entryName"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

// writeCatalogError maps catalog failures onto gateway-ish status codes.
func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, catalog.ErrNotAuthenticated) {
		status = http.StatusConflict
	}
	s.writeError(w, status, err.Error())
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
