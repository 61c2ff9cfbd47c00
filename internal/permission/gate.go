// Package permission decides whether a recording session may start.
package permission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Status is the outcome of a permission check.
type Status int

const (
	// Granted means capture may start.
	Granted Status = iota
	// Denied means the user refused this time and may be asked again.
	Denied
	// PermanentlyDenied means asking again will not help; the user has to
	// change the OS privacy settings outside this application.
	PermanentlyDenied
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case PermanentlyDenied:
		return "permanently denied"
	default:
		return "unknown"
	}
}

var (
	ErrDenied            = errors.New("microphone permission denied")
	ErrPermanentlyDenied = errors.New("microphone permission permanently denied")
)

// Err returns the error matching s, or nil for Granted.
func (s Status) Err() error {
	switch s {
	case Granted:
		return nil
	case PermanentlyDenied:
		return ErrPermanentlyDenied
	default:
		return ErrDenied
	}
}

// Gate reports whether microphone capture is authorized.
type Gate interface {
	Ensure(ctx context.Context) (Status, error)
}

// Prober attempts to access the capture device.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeGate asks the Prober for access. A successful probe is remembered, so
// checks after a grant have no side effects. After maxPrompts consecutive
// failures the gate stops probing and reports PermanentlyDenied.
type ProbeGate struct {
	prober     Prober
	maxPrompts int
	logger     *slog.Logger

	mu       sync.Mutex
	granted  bool
	failures int
}

// NewProbeGate creates a gate. maxPrompts < 1 is treated as 1.
func NewProbeGate(prober Prober, maxPrompts int, logger *slog.Logger) *ProbeGate {
	if maxPrompts < 1 {
		maxPrompts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeGate{prober: prober, maxPrompts: maxPrompts, logger: logger}
}

// Ensure implements Gate. The returned error is non-nil only if ctx ends.
func (g *ProbeGate) Ensure(ctx context.Context) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.granted {
		return Granted, nil
	}
	if g.failures >= g.maxPrompts {
		return PermanentlyDenied, nil
	}

	if err := g.prober.Probe(ctx); err != nil {
		if ctx.Err() != nil {
			return Denied, ctx.Err()
		}
		g.failures++
		g.logger.Warn("microphone probe failed", "attempt", g.failures, "max", g.maxPrompts, "error", err)
		if g.failures >= g.maxPrompts {
			return PermanentlyDenied, nil
		}
		return Denied, nil
	}

	g.granted = true
	g.failures = 0
	return Granted, nil
}

// Reset forgets earlier denials, e.g. after the user reports having changed
// the OS settings.
func (g *ProbeGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	g.granted = false
}
