package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/detector"
	"github.com/kozaktomas/facefinder/internal/ingest"
)

// fakeIngester returns a canned result and records the last job.
type fakeIngester struct {
	result  ingest.Result
	lastJob ingest.Job
}

func (f *fakeIngester) IngestOne(ctx context.Context, job ingest.Job) ingest.Result {
	f.lastJob = job
	res := f.result
	res.SourceName = job.SourceName
	return res
}

// fakeProber implements ModelGate and Prober with canned values.
type fakeProber struct {
	readyErr  error
	face      *detector.Face
	detectErr error
}

func (f *fakeProber) WaitReady(ctx context.Context) error {
	return f.readyErr
}

func (f *fakeProber) DetectPrimary(ctx context.Context, imageData []byte) (*detector.Face, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.face, nil
}

// multipartRequest builds a multipart request with an image in the "file"
// field and optional extra form fields.
func multipartRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}
