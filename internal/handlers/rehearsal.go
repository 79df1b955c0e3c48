package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jamroom/backend/internal/middleware"
	"github.com/jamroom/backend/internal/models"
	"github.com/jamroom/backend/internal/registry"
	"github.com/jamroom/backend/internal/services"
)

// RehearsalHandler exposes the session coordinator over HTTP.
type RehearsalHandler struct {
	rehearsals *services.RehearsalService
}

// NewRehearsalHandler creates a RehearsalHandler.
func NewRehearsalHandler(rehearsals *services.RehearsalService) *RehearsalHandler {
	return &RehearsalHandler{rehearsals: rehearsals}
}

// Create opens a new session with the caller as admin.
func (h *RehearsalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.rehearsals.CreateSession(r.Context(), middleware.GetClaims(r.Context()), req.Instrument)
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{SessionID: session.ID})
}

// List returns the discovery view of every live session.
func (h *RehearsalHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.rehearsals.ListSessions(r.Context(), middleware.GetClaims(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []registry.Summary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Join adds the caller to a session and returns the session with any song in progress.
func (h *RehearsalHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.rehearsals.JoinSession(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "id"), req.Instrument)
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to join session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SelectSong sets the session's current song. Admin of the session only.
func (h *RehearsalHandler) SelectSong(w http.ResponseWriter, r *http.Request) {
	var req models.SelectSongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	song, err := h.rehearsals.SelectSong(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "id"), req.SongTitle)
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to select song")
		return
	}

	writeJSON(w, http.StatusOK, models.SelectSongResponse{Song: song})
}

// End terminates the session. Admin of the session only.
func (h *RehearsalHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.rehearsals.EndSession(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}
