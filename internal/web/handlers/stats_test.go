package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facefinder/internal/database"
	"github.com/kozaktomas/facefinder/internal/database/mock"
)

func TestStatsCounts(t *testing.T) {
	store := seedStore(t, "ev1", map[string]float32{
		"http://cdn.local/a.jpg": 0.1,
		"http://cdn.local/b.jpg": 0.2,
	})
	h := NewStatsHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ev1/stats", nil)
	req = requestWithChiParams(req, map[string]string{"eventID": "ev1"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		EventID string `json:"event_id"`
		Faces   int    `json:"faces"`
		Photos  int    `json:"photos"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.EventID != "ev1" {
		t.Errorf("unexpected event_id: %s", resp.EventID)
	}
	if resp.Faces != 2 || resp.Photos != 2 {
		t.Errorf("expected 2 faces and 2 photos, got %d/%d", resp.Faces, resp.Photos)
	}
}

func TestStatsUnknownEventIsEmpty(t *testing.T) {
	h := NewStatsHandler(mock.NewFaceStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/nope/stats", nil)
	req = requestWithChiParams(req, map[string]string{"eventID": "nope"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Faces  int `json:"faces"`
		Photos int `json:"photos"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Faces != 0 || resp.Photos != 0 {
		t.Errorf("expected empty partition counts, got %d/%d", resp.Faces, resp.Photos)
	}
}

func TestStatsStoreUnavailable(t *testing.T) {
	store := mock.NewFaceStore()
	store.ListError = database.ErrUnavailable
	h := NewStatsHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ev1/stats", nil)
	req = requestWithChiParams(req, map[string]string{"eventID": "ev1"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusServiceUnavailable)
}
