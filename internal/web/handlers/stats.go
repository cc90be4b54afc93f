package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/database"
)

// StatsHandler handles event partition statistics.
type StatsHandler struct {
	store database.FaceStore
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store database.FaceStore) *StatsHandler {
	return &StatsHandler{store: store}
}

// Get returns indexed face and photo counts for the event partition. An
// unknown event is simply an empty partition, not a 404.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "missing event ID")
		return
	}

	faces, err := h.store.CountByEvent(r.Context(), eventID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	photos, err := h.store.CountPhotosByEvent(r.Context(), eventID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"faces":    faces,
		"photos":   photos,
	})
}
