package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// download fetches u into dir and returns the local path. The file is
// written to a temp name first and renamed into place when complete.
func download(ctx context.Context, c *http.Client, u, dir string, logger *slog.Logger) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	resp, err := get(ctx, c, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	destPath := filepath.Join(dir, cacheName(resp.Request.URL.Path))

	f, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	pw := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  filepath.Base(destPath),
		logger: logger,
	}

	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("artifact is empty")
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving artifact: %w", err)
	}

	logger.Debug("artifact downloaded", "path", destPath, "size", humanize.Bytes(uint64(written)))
	return destPath, nil
}

func cacheName(urlPath string) string {
	name := path.Base(urlPath)
	if name == "." || name == "/" || name == "" {
		return "artifact.wav"
	}
	return name
}

// progressWriter wraps an io.Writer and logs download progress at most
// once per second.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
	logger  *slog.Logger
	last    time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)

	if time.Since(pw.last) < time.Second {
		return n, err
	}
	pw.last = time.Now()

	if pw.total > 0 {
		pw.logger.Debug("downloading artifact",
			"file", pw.label,
			"progress", fmt.Sprintf("%s / %s", humanize.Bytes(uint64(pw.written)), humanize.Bytes(uint64(pw.total))))
	} else {
		pw.logger.Debug("downloading artifact",
			"file", pw.label,
			"progress", humanize.Bytes(uint64(pw.written)))
	}
	return n, err
}
