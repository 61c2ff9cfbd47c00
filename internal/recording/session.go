// Package recording owns the lifecycle of one capture-to-file operation:
// open a session at a fixed path, stop capture, and verify the file.
package recording

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// State is the lifecycle state of a Session.
type State int

const (
	Closed State = iota
	Open
	Stopped
	Invalid
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Stopped:
		return "stopped"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Session is one capture. Path is fixed when the session opens.
type Session struct {
	ID        string
	Path      string
	StartedAt time.Time
	StoppedAt time.Time
	Size      int64
	State     State
}

var (
	// ErrSessionOpen is returned by Open while another session is open.
	ErrSessionOpen = errors.New("recording: a session is already open")
	// ErrNoSession is returned by Close when nothing is being recorded.
	ErrNoSession = errors.New("recording: no open session")
)

// RecordingUnusableError reports a capture whose file is missing or empty.
type RecordingUnusableError struct {
	Path   string
	Reason string
	Err    error
}

func (e *RecordingUnusableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recording unusable (%s): %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("recording unusable (%s): %s", e.Reason, e.Path)
}

func (e *RecordingUnusableError) Unwrap() error {
	return e.Err
}

// FileInfo is the result of a Stat.
type FileInfo struct {
	Exists bool
	Size   int64
}

// FS is the filesystem the manager writes recordings to.
type FS interface {
	// Dir returns a writable directory for recordings, creating it if needed.
	Dir() (string, error)
	Stat(path string) (FileInfo, error)
	Remove(path string) error
}

// OSFS is an FS rooted at a directory on the local disk.
type OSFS struct {
	root string
}

// NewOSFS returns an FS that writes below root.
func NewOSFS(root string) *OSFS {
	return &OSFS{root: root}
}

func (f *OSFS) Dir() (string, error) {
	if err := os.MkdirAll(f.root, 0755); err != nil {
		return "", fmt.Errorf("recording: create dir: %w", err)
	}
	return f.root, nil
}

func (f *OSFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return FileInfo{}, nil
	}
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Exists: true, Size: info.Size()}, nil
}

func (f *OSFS) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
