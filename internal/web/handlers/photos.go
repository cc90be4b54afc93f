package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/ingest"
)

// modelReadyWait bounds how long a request waits for the face models to
// finish loading before giving up with model_loading.
const modelReadyWait = 15 * time.Second

// Ingester runs one ingestion job. *ingest.Pipeline satisfies it.
type Ingester interface {
	IngestOne(ctx context.Context, job ingest.Job) ingest.Result
}

// ModelGate reports readiness of the face embedding models.
type ModelGate interface {
	WaitReady(ctx context.Context) error
}

// PhotosHandler handles event photo uploads.
type PhotosHandler struct {
	pipeline Ingester
	models   ModelGate
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(pipeline Ingester, models ModelGate) *PhotosHandler {
	return &PhotosHandler{pipeline: pipeline, models: models}
}

// Upload ingests one photo into the event: detect faces, optimize, store,
// index. Zero detected faces is a success with faces_indexed 0.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "missing event ID")
		return
	}

	readyCtx, cancel := context.WithTimeout(r.Context(), modelReadyWait)
	defer cancel()
	if err := h.models.WaitReady(readyCtx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "model_loading")
		return
	}

	filename, data, err := readMultipartImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.pipeline.IngestOne(r.Context(), ingest.Job{
		EventID:    eventID,
		SourceName: filename,
		Data:       data,
	})
	if res.Err != nil {
		respondDomainError(w, res.Err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photo_url":     res.PhotoURL,
		"faces_indexed": res.Faces,
	})
}
