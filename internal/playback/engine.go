// Package playback plays synthesized audio artifacts. A Player tries a
// streaming engine first and falls back to a download-and-poll engine.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrPlaybackFailed is returned when no engine could play an artifact.
	ErrPlaybackFailed = errors.New("playback: failed")
	// ErrStalled is returned by an engine whose sound stopped making
	// progress or overran its duration.
	ErrStalled = errors.New("playback: stalled")
)

// defaultGrace is how long an engine waits past the expected end of a clip,
// and how long the position may stand still, before giving up.
const defaultGrace = 2 * time.Second

func graceOrDefault(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return defaultGrace
}

// Engine plays one artifact to completion.
type Engine interface {
	// Play blocks until the artifact finished playing, failed, or ctx was
	// cancelled.
	Play(ctx context.Context, ref string) error
}

// Resolver turns an artifact reference into a URL.
type Resolver interface {
	ResolveArtifact(ref string) (string, error)
}

// CacheBust returns rawURL with a "t" query parameter set to now, so that
// intermediaries never serve a stale artifact stored under the same name.
func CacheBust(rawURL string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("playback: parse artifact url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixNano(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Player plays through a primary engine and, if that fails, exactly one
// attempt with the secondary engine.
type Player struct {
	primary   Engine
	secondary Engine
	logger    *slog.Logger
}

// NewPlayer returns a Player. secondary may be nil.
func NewPlayer(primary, secondary Engine, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{primary: primary, secondary: secondary, logger: logger}
}

// Play implements Engine.
func (p *Player) Play(ctx context.Context, ref string) error {
	err := p.primary.Play(ctx, ref)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.secondary == nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	p.logger.Warn("primary playback failed, trying fallback", "ref", ref, "error", err)

	err2 := p.secondary.Play(ctx, ref)
	if err2 == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: primary: %v; fallback: %v", ErrPlaybackFailed, err, err2)
}
