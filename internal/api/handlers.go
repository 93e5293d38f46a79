package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tanks/internal/config"

	"github.com/go-chi/chi/v5"
)

// apiHandlers holds the dependencies used by the HTTP handlers. Kept as a
// small struct (rather than free functions closing over globals) so
// NewRouter stays pure and testable with httptest.NewServer.
type apiHandlers struct {
	manager *MatchManager
	limits  config.ResourceLimits
}

func (h *apiHandlers) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.manager.CreateMatch(req)
	if err != nil {
		writeError(w, err.Error(), classifyMatchError(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"matchId": id})
}

func (h *apiHandlers) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	snap, err := h.manager.Snapshot(id)
	if err != nil {
		writeError(w, err.Error(), classifyMatchError(err))
		return
	}
	writeJSON(w, snap)
}

func (h *apiHandlers) handleStopMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	if err := h.manager.Stop(id); err != nil {
		writeError(w, err.Error(), classifyMatchError(err))
		return
	}
	writeJSON(w, map[string]bool{"stopped": true})
}

func (h *apiHandlers) handleListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"active": h.manager.Count()})
}

func (h *apiHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":        "ok",
		"activeMatches": h.manager.Count(),
	})
}

// classifyMatchError maps the sentinel errors MatchManager returns to HTTP
// status codes, per §7's ProtocolError policy: a bad request is reported
// back to the requester, never surfaced as a server fault.
func classifyMatchError(err error) int {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyMatches):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnknownClassTag),
		errors.Is(err, ErrOversizeSubmission),
		errors.Is(err, ErrTooFewPlayers),
		errors.Is(err, ErrTooManyPlayers):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
