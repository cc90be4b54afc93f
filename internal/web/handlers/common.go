// Package handlers implements the JSON API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kozaktomas/facefinder/internal/database"
	"github.com/kozaktomas/facefinder/internal/detector"
)

// maxUploadSize caps multipart request memory (the rest spills to disk).
const maxUploadSize = 32 << 20 // 32 MB

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readMultipartImage extracts the uploaded image from the "file" form field.
func readMultipartImage(r *http.Request) (filename string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", nil, errors.New("failed to parse multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New("file field is required")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return header.Filename, data, nil
}

// respondDomainError maps known failure modes onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detector.ErrModelNotReady):
		respondError(w, http.StatusServiceUnavailable, "model_loading")
	case errors.Is(err, database.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "face store unavailable")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
