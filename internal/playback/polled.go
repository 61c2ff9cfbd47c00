package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chaz8081/gostt-translate/internal/audio"
)

// Polled downloads the artifact to CacheDir, then plays it with an
// explicit stop-then-start and watches position against duration to
// detect the end. It does not rely on the device's completion signal.
// Playback fails with ErrStalled when the position stands still for Grace
// or the clip runs Grace past its duration.
type Polled struct {
	HTTP         *http.Client
	Resolver     Resolver
	Output       audio.Output
	CacheDir     string
	PollInterval time.Duration
	Grace        time.Duration // zero means 2s
	Logger       *slog.Logger

	now func() time.Time
}

// Play implements Engine.
func (p *Polled) Play(ctx context.Context, ref string) error {
	u, err := p.Resolver.ResolveArtifact(ref)
	if err != nil {
		return fmt.Errorf("playback: polled: resolve %q: %w", ref, err)
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	u, err = CacheBust(u, now())
	if err != nil {
		return err
	}

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	local, err := download(ctx, client, u, p.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("playback: polled: %w", err)
	}

	clip, err := audio.DecodeWAVFile(local)
	if err != nil {
		return fmt.Errorf("playback: polled: %w", err)
	}

	snd, err := p.Output.Load(clip)
	if err != nil {
		return fmt.Errorf("playback: polled: load: %w", err)
	}
	defer snd.Release()

	if err := snd.Stop(); err != nil {
		return fmt.Errorf("playback: polled: %w", err)
	}
	if err := snd.Start(); err != nil {
		return fmt.Errorf("playback: polled: %w", err)
	}

	interval := p.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := snd.Duration()
	grace := graceOrDefault(p.Grace)
	deadline := time.NewTimer(total + grace)
	defer deadline.Stop()

	lastPos, lastMove := snd.Position(), time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = snd.Stop()
			return ctx.Err()
		case <-deadline.C:
			_ = snd.Stop()
			return fmt.Errorf("playback: polled: %w: not finished after %s", ErrStalled, total+grace)
		case <-ticker.C:
			pos := snd.Position()
			if pos >= total {
				return nil
			}
			if pos != lastPos {
				lastPos, lastMove = pos, time.Now()
				continue
			}
			if time.Since(lastMove) >= grace {
				_ = snd.Stop()
				return fmt.Errorf("playback: polled: %w: position stuck at %s", ErrStalled, pos)
			}
		}
	}
}
