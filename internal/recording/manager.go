package recording

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Capturer records microphone audio into a file.
type Capturer interface {
	// Start begins capturing into path.
	Start(path string) error
	// Stop ends capture. The returned path is what the backend believes it
	// wrote; the manager does not rely on it.
	Stop() (string, error)
	// Abort ends capture and discards the audio.
	Abort()
}

// Manager runs at most one recording session at a time.
type Manager struct {
	capturer Capturer
	fs       FS
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *Session
}

// NewManager creates a Manager. A nil logger uses slog.Default().
func NewManager(capturer Capturer, fs FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		capturer: capturer,
		fs:       fs,
		logger:   logger,
		now:      time.Now,
	}
}

// Open allocates the session's file path and starts capture. It returns as
// soon as capture is running.
func (m *Manager) Open(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrSessionOpen
	}

	dir, err := m.fs.Dir()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: m.now(),
		State:     Open,
	}
	s.Path = filepath.Join(dir, "recording-"+s.ID+".wav")

	if err := m.capturer.Start(s.Path); err != nil {
		return nil, fmt.Errorf("recording: start capture: %w", err)
	}

	m.current = s
	m.logger.Debug("recording started", "session", s.ID, "path", s.Path)

	cp := *s
	return &cp, nil
}

// Close stops capture and verifies that the file at the open-time path
// exists and is not empty. On failure the session becomes Invalid and a
// *RecordingUnusableError is returned along with the session.
func (m *Manager) Close(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return nil, ErrNoSession
	}
	m.current = nil

	reported, stopErr := m.capturer.Stop()
	s.StoppedAt = m.now()
	if reported != "" && reported != s.Path {
		m.logger.Debug("ignoring capture-reported path", "session", s.ID, "reported", reported, "path", s.Path)
	}

	if stopErr != nil {
		s.State = Invalid
		cp := *s
		return &cp, &RecordingUnusableError{Path: s.Path, Reason: "capture failed", Err: stopErr}
	}

	info, err := m.fs.Stat(s.Path)
	switch {
	case err != nil:
		s.State = Invalid
		cp := *s
		return &cp, &RecordingUnusableError{Path: s.Path, Reason: "stat failed", Err: err}
	case !info.Exists:
		s.State = Invalid
		cp := *s
		return &cp, &RecordingUnusableError{Path: s.Path, Reason: "file missing"}
	case info.Size == 0:
		s.State = Invalid
		cp := *s
		return &cp, &RecordingUnusableError{Path: s.Path, Reason: "file empty"}
	}

	s.Size = info.Size
	s.State = Stopped
	m.logger.Info("recording stopped",
		"session", s.ID,
		"size", humanize.Bytes(uint64(s.Size)),
		"duration", s.StoppedAt.Sub(s.StartedAt).Round(time.Millisecond))

	cp := *s
	return &cp, nil
}

// Abort stops an open capture without verifying it and removes anything
// the backend may have written.
func (m *Manager) Abort() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return
	}
	m.capturer.Abort()
	if err := m.fs.Remove(s.Path); err != nil {
		m.logger.Warn("removing aborted recording", "path", s.Path, "error", err)
	}
	m.logger.Debug("recording aborted", "session", s.ID)
}

// Discard deletes the session's file once it has been uploaded or the run
// that owned it was abandoned.
func (m *Manager) Discard(s *Session) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := m.fs.Remove(s.Path); err != nil {
		return fmt.Errorf("recording: remove %s: %w", s.Path, err)
	}
	return nil
}

// IsOpen reports whether a session is currently open.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}
