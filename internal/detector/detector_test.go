package detector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/facefinder/internal/config"
)

func testConfig(url string) config.DetectorConfig {
	return config.DetectorConfig{
		URL:                  url,
		Dim:                  128,
		MinConfidencePrimary: 0.5,
		MinConfidenceAll:     0.4,
		MaxFaces:             100,
	}
}

// newTestService returns an httptest server that loads models instantly and
// answers /detect/faces with the given faces.
func newTestService(t *testing.T, faces []Face) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/models/load", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/detect/faces", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := faceResponse{FacesCount: len(faces), Faces: faces, Model: "test"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectBeforeLoadFails(t *testing.T) {
	srv := newTestService(t, nil)
	c := New(testConfig(srv.URL))

	_, err := c.DetectAll(context.Background(), []byte("img"))
	if !errors.Is(err, ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}

	_, err = c.DetectPrimary(context.Background(), []byte("img"))
	if !errors.Is(err, ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}
}

func TestLoadModelsMarksReady(t *testing.T) {
	srv := newTestService(t, nil)
	c := New(testConfig(srv.URL))

	if c.Ready() {
		t.Fatal("client should not be ready before LoadModels")
	}
	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	if !c.Ready() {
		t.Fatal("client should be ready after LoadModels")
	}

	// Second call is a no-op.
	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("repeated LoadModels failed: %v", err)
	}
}

func TestWaitReady(t *testing.T) {
	srv := newTestService(t, nil)
	c := New(testConfig(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.WaitReady(ctx); !errors.Is(err, ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady on timeout, got %v", err)
	}

	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	if err := c.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady after load failed: %v", err)
	}
}

func TestDetectAllFiltersByConfidence(t *testing.T) {
	faces := []Face{
		{FaceIndex: 0, Embedding: []float32{1}, DetScore: 0.9},
		{FaceIndex: 1, Embedding: []float32{2}, DetScore: 0.45},
		{FaceIndex: 2, Embedding: []float32{3}, DetScore: 0.2}, // below 0.4 floor
	}
	srv := newTestService(t, faces)
	c := New(testConfig(srv.URL))
	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}

	got, err := c.DetectAll(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 faces above floor, got %d", len(got))
	}
	// Sorted by confidence descending.
	if got[0].DetScore < got[1].DetScore {
		t.Errorf("expected faces sorted by det score, got %v then %v", got[0].DetScore, got[1].DetScore)
	}
}

func TestDetectAllZeroFacesIsNotAnError(t *testing.T) {
	srv := newTestService(t, nil)
	c := New(testConfig(srv.URL))
	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}

	got, err := c.DetectAll(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no faces, got %d", len(got))
	}
}

func TestDetectPrimary(t *testing.T) {
	tests := []struct {
		name      string
		faces     []Face
		wantIndex int
		wantNil   bool
	}{
		{
			name: "most confident wins",
			faces: []Face{
				{FaceIndex: 0, DetScore: 0.6},
				{FaceIndex: 1, DetScore: 0.95},
				{FaceIndex: 2, DetScore: 0.7},
			},
			wantIndex: 1,
		},
		{
			name:    "no face at all",
			faces:   nil,
			wantNil: true,
		},
		{
			name: "all below probe threshold",
			faces: []Face{
				{FaceIndex: 0, DetScore: 0.45},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestService(t, tt.faces)
			c := New(testConfig(srv.URL))
			if err := c.LoadModels(context.Background()); err != nil {
				t.Fatalf("LoadModels failed: %v", err)
			}

			got, err := c.DetectPrimary(context.Background(), []byte("img"))
			if err != nil {
				t.Fatalf("DetectPrimary failed: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil face, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a face, got nil")
			}
			if got.FaceIndex != tt.wantIndex {
				t.Errorf("expected face index %d, got %d", tt.wantIndex, got.FaceIndex)
			}
		})
	}
}

func TestDetectServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/load" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}

	if _, err := c.DetectAll(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error from failing service")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %s, want %s", got, tt.want)
			}
		})
	}
}
