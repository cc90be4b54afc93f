package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/livesync"
)

// SessionFactory builds a live sync session for a directory and event.
type SessionFactory func(dir, eventID string) *livesync.Session

// SyncHandler manages live sync sessions over the API.
type SyncHandler struct {
	sessions   *livesync.Manager
	newSession SessionFactory
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sessions *livesync.Manager, newSession SessionFactory) *SyncHandler {
	return &SyncHandler{sessions: sessions, newSession: newSession}
}

type startSyncRequest struct {
	Dir     string `json:"dir"`
	EventID string `json:"event_id"`
}

// Start launches a live sync session watching a directory for an event.
// The session outlives the request; it runs until explicitly stopped.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dir == "" || req.EventID == "" {
		respondError(w, http.StatusBadRequest, "dir and event_id are required")
		return
	}

	session := h.newSession(req.Dir, req.EventID)
	if err := session.Start(context.Background()); err != nil {
		switch {
		case errors.Is(err, livesync.ErrPermissionDenied):
			respondError(w, http.StatusForbidden, err.Error())
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	h.sessions.Add(session)

	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": session.ID,
		"state":      session.State(),
	})
}

// Status returns the state, counters, and recent progress lines of a session.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(w, r)
	if session == nil {
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"state":      session.State(),
		"stats":      session.Stats(),
		"recent":     session.Events().Recent(),
	})
}

// Stop stops a session, waits for in-flight work, and deregisters it.
func (h *SyncHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(w, r)
	if session == nil {
		return
	}

	session.Stop()
	h.sessions.Remove(session.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"state":      session.State(),
		"stats":      session.Stats(),
	})
}

// Events streams session progress lines via SSE until the session stops or
// the client disconnects.
func (h *SyncHandler) Events(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(w, r)
	if session == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	lines := session.Events().AddListener()
	defer session.Events().RemoveListener(lines)

	sendSSEEvent(w, flusher, "status", map[string]any{
		"session_id": session.ID,
		"state":      session.State(),
		"stats":      session.Stats(),
	})

	for {
		select {
		case <-r.Context().Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "log", map[string]string{"line": line})
		}
	}
}

func (h *SyncHandler) lookup(w http.ResponseWriter, r *http.Request) *livesync.Session {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil
	}
	session := h.sessions.Get(sessionID)
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return session
}
