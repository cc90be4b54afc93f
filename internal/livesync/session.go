// Package livesync watches a local directory (typically a camera's tether
// or hot-folder target) and feeds newly appearing photos into the ingestion
// pipeline while the event is running.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/facefinder/internal/ingest"
)

// State is the live sync session lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
	StatePolling  State = "polling"
	StateStopped  State = "stopped"
)

var (
	// ErrPermissionDenied means the directory exists but cannot be read.
	// Terminal for the session; it stays idle.
	ErrPermissionDenied = errors.New("directory access denied")
	// ErrCancelled means the caller gave up before the session started
	// watching. Terminal for the session; it stays idle.
	ErrCancelled = errors.New("live sync cancelled")
	// ErrAlreadyStarted is returned by a second Start on the same session.
	ErrAlreadyStarted = errors.New("session already started")
)

// imageExts are the file extensions picked up from the watched directory.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Ingester runs one ingestion job. *ingest.Pipeline satisfies it.
type Ingester interface {
	IngestOne(ctx context.Context, job ingest.Job) ingest.Result
}

// Stats are cumulative counters for one session.
type Stats struct {
	Cycles       int `json:"cycles"`
	FilesSeen    int `json:"files_seen"`
	FilesQueued  int `json:"files_queued"`
	PhotosStored int `json:"photos_stored"`
	FacesIndexed int `json:"faces_indexed"`
	Failures     int `json:"failures"`
}

// Session is one live sync run over one directory and one event. Jobs are
// executed one at a time in submission order. A session cannot be
// restarted; create a new one (with a fresh dedup tracker) instead.
type Session struct {
	ID string

	dir      string
	eventID  string
	interval time.Duration
	pipeline Ingester
	tracker  *ingest.Tracker
	logger   *zap.Logger
	events   *Broadcaster

	mu    sync.Mutex
	state State
	stats Stats

	jobs   chan ingest.Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates an idle session. queueSize bounds the pending job
// buffer; a full buffer applies backpressure to the polling loop.
func NewSession(dir, eventID string, interval time.Duration, queueSize int, pipeline Ingester, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Session{
		ID:       uuid.NewString(),
		dir:      dir,
		eventID:  eventID,
		interval: interval,
		pipeline: pipeline,
		tracker:  ingest.NewTracker(),
		logger:   logger.With(zap.String("event_id", eventID), zap.String("dir", dir)),
		events:   NewBroadcaster(),
		state:    StateIdle,
		jobs:     make(chan ingest.Job, queueSize),
	}
}

// Start acquires the directory and begins watching. Returns
// ErrPermissionDenied or ErrCancelled without starting anything; both leave
// the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	info, err := os.Stat(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, s.dir)
		}
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory: %s is not a directory", s.dir)
	}
	// Probe readability up front so a chmod-700 root owned by someone else
	// fails the session start instead of every poll.
	if _, err := os.ReadDir(s.dir); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, s.dir)
		}
		return fmt.Errorf("watch directory: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	// Jobs keep the parent's values but outlive cancellation: stopping the
	// session must not kill an upload that is already in flight.
	jobCtx := context.WithoutCancel(ctx)

	s.setState(StateWatching)
	s.logLine("watching %s every %s", s.dir, s.interval)

	s.wg.Add(2)
	go s.pollLoop(pollCtx)
	go s.worker(jobCtx)

	return nil
}

// Stop stops the poll timer, waits for queued and in-flight jobs to finish,
// and moves the session to Stopped. Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.setState(StateStopped)
	s.logLine("stopped after %d poll cycles, %d photos stored", s.Stats().Cycles, s.Stats().PhotosStored)
	s.events.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Events exposes the session's log line broadcaster (SSE, recent lines).
func (s *Session) Events() *Broadcaster {
	return s.events
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// pollLoop drives poll cycles until the context is cancelled, then closes
// the job queue so the worker can drain and exit.
func (s *Session) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.jobs)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll runs one enumeration cycle. Enumeration is stateless: every cycle
// re-scans the directory, so files added between polls are always
// eventually observed. Transient errors are logged and the session keeps
// polling.
func (s *Session) poll(ctx context.Context) {
	s.setState(StatePolling)
	defer s.setState(StateWatching)

	s.mu.Lock()
	s.stats.Cycles++
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("poll failed", zap.Error(err))
		s.logLine("poll failed: %v", err)
		return
	}

	var queued int
	for _, entry := range entries {
		if entry.IsDir() || !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		s.mu.Lock()
		s.stats.FilesSeen++
		s.mu.Unlock()

		// Sole dedup gate: atomically marks the name as seen.
		if !s.tracker.ShouldProcess(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			// The file is marked as seen but was unreadable (likely still
			// being written). Failure is logged; the session moves on.
			s.logger.Warn("failed to read new file", zap.String("file", entry.Name()), zap.Error(err))
			s.logLine("failed to read %s: %v", entry.Name(), err)
			s.mu.Lock()
			s.stats.Failures++
			s.mu.Unlock()
			continue
		}

		job := ingest.Job{EventID: s.eventID, SourceName: entry.Name(), Data: data}
		select {
		case s.jobs <- job:
			queued++
			s.mu.Lock()
			s.stats.FilesQueued++
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}

	if queued > 0 {
		s.logLine("found %d new file(s)", queued)
	}
}

// worker executes queued jobs one at a time in submission order. Job
// failures never stop the session.
func (s *Session) worker(ctx context.Context) {
	defer s.wg.Done()

	for job := range s.jobs {
		res := s.pipeline.IngestOne(ctx, job)

		s.mu.Lock()
		if res.Err != nil {
			s.stats.Failures++
		} else {
			s.stats.PhotosStored++
		}
		s.stats.FacesIndexed += res.Faces
		s.mu.Unlock()

		if res.Err != nil {
			s.logger.Warn("ingestion failed", zap.String("file", job.SourceName), zap.Error(res.Err))
			s.logLine("failed %s: %v", job.SourceName, res.Err)
			continue
		}
		s.logLine("indexed %s: %d face(s)", job.SourceName, res.Faces)
	}
}

// logLine emits a human-readable progress line to listeners.
func (s *Session) logLine(format string, args ...any) {
	s.events.Send(fmt.Sprintf(format, args...))
}
