package livesync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/facefinder/internal/ingest"
)

// fakeIngester records every job and optionally fails jobs whose source
// name contains failSubstr.
type fakeIngester struct {
	mu         sync.Mutex
	calls      []string
	failSubstr string
	delay      time.Duration
}

func (f *fakeIngester) IngestOne(ctx context.Context, job ingest.Job) ingest.Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, job.SourceName)
	f.mu.Unlock()

	res := ingest.Result{SourceName: job.SourceName, PhotoURL: "http://cdn.local/" + job.SourceName, Faces: 1}
	if f.failSubstr != "" && strings.Contains(job.SourceName, f.failSubstr) {
		res.Err = errors.New("simulated ingestion failure")
		res.Faces = 0
	}
	return res
}

func (f *fakeIngester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("fake image bytes"), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestSession(t *testing.T, dir string, ing Ingester) *Session {
	t.Helper()
	s := NewSession(dir, "ev1", 10*time.Millisecond, 16, ing, nil)
	t.Cleanup(s.Stop)
	return s
}

func TestSessionNoReprocessing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg")

	ing := &fakeIngester{}
	s := newTestSession(t, dir, ing)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return ing.callCount() >= 1 }, "a.jpg was never ingested")

	// Let several more poll cycles run over the unchanged directory.
	waitFor(t, 2*time.Second, func() bool { return s.Stats().Cycles >= 4 }, "not enough poll cycles")
	if got := ing.callCount(); got != 1 {
		t.Errorf("file reprocessed: expected 1 ingestion, got %d", got)
	}
}

func TestSessionPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.jpg")

	ing := &fakeIngester{}
	s := newTestSession(t, dir, ing)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return ing.callCount() == 1 }, "first.jpg was never ingested")

	writeFile(t, dir, "second.jpg")
	waitFor(t, 2*time.Second, func() bool { return ing.callCount() == 2 }, "second.jpg was never ingested")

	stats := s.Stats()
	if stats.PhotosStored != 2 {
		t.Errorf("expected 2 photos stored, got %d", stats.PhotosStored)
	}
	if stats.FacesIndexed != 2 {
		t.Errorf("expected 2 faces indexed, got %d", stats.FacesIndexed)
	}
}

func TestSessionIgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, "raw.cr2")
	writeFile(t, dir, "photo.JPG") // extension match is case-insensitive
	if err := os.Mkdir(filepath.Join(dir, "album.jpg"), 0o750); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	ing := &fakeIngester{}
	s := newTestSession(t, dir, ing)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return ing.callCount() == 1 }, "photo.JPG was never ingested")
	waitFor(t, 2*time.Second, func() bool { return s.Stats().Cycles >= 3 }, "not enough poll cycles")

	if got := ing.callCount(); got != 1 {
		t.Errorf("expected only photo.JPG to be ingested, got %d ingestions", got)
	}
}

func TestSessionFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.jpg")
	writeFile(t, dir, "good.jpg")

	ing := &fakeIngester{failSubstr: "bad"}
	s := newTestSession(t, dir, ing)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		st := s.Stats()
		return st.PhotosStored == 1 && st.Failures == 1
	}, "expected 1 stored and 1 failed")

	// The session survives the failure and keeps watching.
	if st := s.State(); st != StateWatching && st != StatePolling {
		t.Errorf("expected session to keep running, state is %s", st)
	}

	writeFile(t, dir, "later.jpg")
	waitFor(t, 2*time.Second, func() bool { return s.Stats().PhotosStored == 2 }, "later.jpg was never ingested")
}

func TestSessionStop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg")

	ing := &fakeIngester{delay: 30 * time.Millisecond}
	s := NewSession(dir, "ev1", 10*time.Millisecond, 16, ing, nil)

	if s.State() != StateIdle {
		t.Fatalf("new session should be idle, got %s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return s.Stats().FilesQueued == 1 }, "a.jpg was never queued")

	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", s.State())
	}
	// The queued job ran to completion before Stop returned.
	if got := ing.callCount(); got != 1 {
		t.Errorf("in-flight job did not complete, %d ingestions", got)
	}

	// Idempotent.
	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("second Stop changed state to %s", s.State())
	}
}

func TestSessionStartErrors(t *testing.T) {
	ing := &fakeIngester{}

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := NewSession(t.TempDir(), "ev1", time.Second, 16, ing, nil)
		if err := s.Start(ctx); !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
		if s.State() != StateIdle {
			t.Errorf("failed start should leave the session idle, got %s", s.State())
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		s := NewSession(filepath.Join(t.TempDir(), "nope"), "ev1", time.Second, 16, ing, nil)
		if err := s.Start(context.Background()); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "file.jpg")
		s := NewSession(filepath.Join(dir, "file.jpg"), "ev1", time.Second, 16, ing, nil)
		if err := s.Start(context.Background()); err == nil {
			t.Error("expected error for non-directory path")
		}
	})

	t.Run("double start", func(t *testing.T) {
		s := NewSession(t.TempDir(), "ev1", time.Second, 16, ing, nil)
		t.Cleanup(s.Stop)
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
			t.Errorf("expected ErrAlreadyStarted, got %v", err)
		}
	})
}

func TestSessionProgressLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg")

	ing := &fakeIngester{}
	s := newTestSession(t, dir, ing)
	ch := s.Events().AddListener()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var indexed bool
	deadline := time.After(2 * time.Second)
	for !indexed {
		select {
		case line := <-ch:
			if strings.Contains(line, "indexed a.jpg") {
				indexed = true
			}
		case <-deadline:
			t.Fatal("never received an indexed progress line")
		}
	}

	if len(s.Events().Recent()) == 0 {
		t.Error("expected recent lines to be retained")
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	ing := &fakeIngester{}
	s := NewSession(t.TempDir(), "ev1", time.Second, 16, ing, nil)

	m.Add(s)
	if got := m.Get(s.ID); got != s {
		t.Fatal("Get did not return the registered session")
	}
	if len(m.List()) != 1 {
		t.Errorf("expected 1 session, got %d", len(m.List()))
	}

	m.Remove(s.ID)
	if m.Get(s.ID) != nil {
		t.Error("session still registered after Remove")
	}
	if m.Get("unknown") != nil {
		t.Error("expected nil for unknown session ID")
	}
}
