package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/detector"
	"github.com/kozaktomas/facefinder/internal/matcher"
)

// Prober extracts the primary face from a probe selfie.
type Prober interface {
	ModelGate
	DetectPrimary(ctx context.Context, imageData []byte) (*detector.Face, error)
}

// MatchHandler handles selfie match endpoints.
type MatchHandler struct {
	prober           Prober
	engine           *matcher.Engine
	defaultThreshold float64
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(prober Prober, engine *matcher.Engine, defaultThreshold float64) *MatchHandler {
	return &MatchHandler{
		prober:           prober,
		engine:           engine,
		defaultThreshold: defaultThreshold,
	}
}

// Match returns the distinct photos of the event containing a face close to
// the uploaded selfie. A selfie without a detectable face is a defined
// empty outcome, returned as 200 with no_face set.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	h.match(w, r, false)
}

// MatchRanked is Match with results ordered by best distance ascending.
func (h *MatchHandler) MatchRanked(w http.ResponseWriter, r *http.Request) {
	h.match(w, r, true)
}

func (h *MatchHandler) match(w http.ResponseWriter, r *http.Request, ranked bool) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "missing event ID")
		return
	}

	readyCtx, cancel := context.WithTimeout(r.Context(), modelReadyWait)
	defer cancel()
	if err := h.prober.WaitReady(readyCtx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "model_loading")
		return
	}

	_, data, err := readMultipartImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := h.defaultThreshold
	if v := r.FormValue("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			respondError(w, http.StatusBadRequest, "threshold must be a positive number")
			return
		}
		threshold = f
	}

	face, err := h.prober.DetectPrimary(r.Context(), data)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if face == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"no_face": true,
			"matches": []string{},
			"count":   0,
		})
		return
	}

	if ranked {
		matches, err := h.engine.MatchRanked(r.Context(), eventID, face.Embedding, threshold)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"matches": matches,
			"count":   len(matches),
		})
		return
	}

	urls, err := h.engine.Match(r.Context(), eventID, face.Embedding, threshold)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"matches": urls,
		"count":   len(urls),
	})
}
