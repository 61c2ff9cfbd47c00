package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chaz8081/gostt-translate/internal/audio"
)

// maxArtifactBytes bounds an in-memory artifact (about 10 minutes of 48kHz
// stereo 16-bit audio).
const maxArtifactBytes = 128 << 20

// Stream fetches the artifact over HTTP into memory and plays it, waiting
// for the device's completion signal.
type Stream struct {
	HTTP     *http.Client
	Resolver Resolver
	Output   audio.Output
	Logger   *slog.Logger
	// Grace is how long past the clip's duration to wait for the
	// completion signal. Zero means 2s.
	Grace time.Duration

	now func() time.Time
}

// Play implements Engine.
func (s *Stream) Play(ctx context.Context, ref string) error {
	u, err := s.resolve(ref)
	if err != nil {
		return err
	}

	data, err := fetch(ctx, s.client(), u)
	if err != nil {
		return fmt.Errorf("playback: stream: %w", err)
	}
	s.log().Debug("artifact fetched", "url", u, "size", humanize.Bytes(uint64(len(data))))

	clip, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("playback: stream: %w", err)
	}

	snd, err := s.Output.Load(clip)
	if err != nil {
		return fmt.Errorf("playback: stream: load: %w", err)
	}
	defer snd.Release()

	done := snd.Done()
	if done == nil {
		return fmt.Errorf("playback: stream: output has no completion signal")
	}
	if err := snd.Start(); err != nil {
		return fmt.Errorf("playback: stream: %w", err)
	}

	limit := snd.Duration() + graceOrDefault(s.Grace)
	deadline := time.NewTimer(limit)
	defer deadline.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("playback: stream: %w", err)
		}
		return nil
	case <-deadline.C:
		_ = snd.Stop()
		return fmt.Errorf("playback: stream: %w: no completion after %s", ErrStalled, limit)
	case <-ctx.Done():
		_ = snd.Stop()
		return ctx.Err()
	}
}

func (s *Stream) resolve(ref string) (string, error) {
	u, err := s.Resolver.ResolveArtifact(ref)
	if err != nil {
		return "", fmt.Errorf("playback: resolve %q: %w", ref, err)
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return CacheBust(u, now())
}

func (s *Stream) client() *http.Client {
	if s.HTTP != nil {
		return s.HTTP
	}
	return http.DefaultClient
}

func (s *Stream) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func fetch(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	resp, err := get(ctx, c, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("artifact larger than %s", humanize.Bytes(maxArtifactBytes))
	}
	return data, nil
}

func get(ctx context.Context, c *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching artifact: HTTP %d", resp.StatusCode)
	}
	return resp, nil
}
