// Package detector wraps the external face embedding service. The service
// hosts the detection and recognition models (one slow load at startup) and
// returns a fixed-length embedding per detected face.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/facefinder/internal/config"
)

// ErrModelNotReady is returned by detect calls issued before LoadModels
// has completed. Callers should wait via WaitReady and retry.
var ErrModelNotReady = errors.New("face models not loaded yet")

// Face is a single detected face.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response from the face detection endpoint.
type faceResponse struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// Client talks to the face embedding service.
type Client struct {
	baseURL string
	cfg     config.DetectorConfig
	client  *http.Client

	mu      sync.Mutex
	ready   bool
	readyCh chan struct{} // closed once models are loaded
}

// New creates a detector client. Models are not loaded yet; call LoadModels
// before any detect call, or gate callers with WaitReady.
func New(cfg config.DetectorConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		cfg:     cfg,
		client:  &http.Client{},
		readyCh: make(chan struct{}),
	}
}

// LoadModels asks the service to load its detection and recognition models.
// The call can take tens of seconds on first use. Safe to call more than
// once; subsequent calls after a success are no-ops.
func (c *Client) LoadModels(ctx context.Context) error {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/load", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model load request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model load failed (status %d): %s", resp.StatusCode, string(body))
	}

	c.mu.Lock()
	if !c.ready {
		c.ready = true
		close(c.readyCh)
	}
	c.mu.Unlock()

	return nil
}

// Ready reports whether the models have been loaded.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitReady blocks until the models are loaded or the context is done.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrModelNotReady, ctx.Err())
	}
}

// DetectAll detects every face in the image above the indexing confidence
// floor, up to the configured maximum. Used during ingestion, where small
// faces in group photos matter. Zero faces is a valid empty result.
func (c *Client) DetectAll(ctx context.Context, imageData []byte) ([]Face, error) {
	if !c.Ready() {
		return nil, ErrModelNotReady
	}

	faces, err := c.detect(ctx, imageData, c.cfg.MinConfidenceAll, c.cfg.MaxFaces)
	if err != nil {
		return nil, err
	}
	return faces, nil
}

// DetectPrimary detects the single most confident face above the probe
// confidence threshold. Used for selfies. Returns (nil, nil) when no face
// qualifies; that is a defined no-result, not an error.
func (c *Client) DetectPrimary(ctx context.Context, imageData []byte) (*Face, error) {
	if !c.Ready() {
		return nil, ErrModelNotReady
	}

	faces, err := c.detect(ctx, imageData, c.cfg.MinConfidencePrimary, c.cfg.MaxFaces)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	return &best, nil
}

// detect posts the image and filters the response by confidence client-side
// as well, in case the service ignores the query parameters.
func (c *Client) detect(ctx context.Context, imageData []byte, minConfidence float64, maxFaces int) ([]Face, error) {
	endpoint := "/detect/faces?" + url.Values{
		"min_confidence": {strconv.FormatFloat(minConfidence, 'f', -1, 64)},
		"max_faces":      {strconv.Itoa(maxFaces)},
	}.Encode()

	body, err := c.postMultipartImage(ctx, endpoint, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		if f.DetScore >= minConfidence {
			faces = append(faces, f)
		}
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].DetScore > faces[j].DetScore })
	if maxFaces > 0 && len(faces) > maxFaces {
		faces = faces[:maxFaces]
	}

	return faces, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
