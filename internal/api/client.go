// Package api is the HTTP client for the remote transcription, translation
// and voice synthesis service. Every exchange is a single request with a
// bearer token; uploads are multipart and responses are JSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chaz8081/gostt-translate/internal/auth"
)

const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	HTTPClient        *http.Client
	Logger            *slog.Logger
	RequestTimeout    time.Duration // accent and identity calls
	TranslateTimeout  time.Duration
	SynthesizeTimeout time.Duration
}

// Client talks to the translation service at a base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
	opts   Options
}

// New creates a Client for baseURL (e.g. "http://192.168.0.147:8000").
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url must be absolute, got %q", baseURL)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.TranslateTimeout <= 0 {
		opts.TranslateTimeout = 2 * time.Minute
	}
	if opts.SynthesizeTimeout <= 0 {
		opts.SynthesizeTimeout = 5 * time.Minute
	}

	return &Client{base: u, http: opts.HTTPClient, logger: opts.Logger, opts: opts}, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ResolveArtifact turns an artifact reference from a synthesis response
// into an absolute URL. Absolute references are returned unchanged.
func (c *Client) ResolveArtifact(ref string) (string, error) {
	if ref == "" {
		return "", ErrNoArtifact
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref, nil
	}
	ref = strings.TrimLeft(strings.ReplaceAll(ref, "\\", "/"), "/")
	return c.base.JoinPath(ref).String(), nil
}

// form is a multipart body under construction.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

// file attaches the file at path under name, sent as filename with the
// given content type.
func (f *form) file(name, path, filename, contentType string) {
	if f.err != nil {
		return
	}
	src, err := os.Open(path)
	if err != nil {
		f.err = err
		return
	}
	defer src.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filename))
	h.Set("Content-Type", contentType)
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = io.Copy(part, src)
}

func (f *form) close() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, creds auth.Credentials) (*http.Request, error) {
	u := c.base.JoinPath(path)
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a JSON response into out (if non-nil). Every
// failure is returned as a *StageError for stage.
func (c *Client) do(stage string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &StageError{Stage: stage, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &StageError{Stage: stage, Retryable: true, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("api response",
		"stage", stage,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(body))),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode == http.StatusUnauthorized {
		return &StageError{Stage: stage, Retryable: false, Err: ErrAuthExpired}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StageError{
			Stage:     stage,
			Retryable: retryableStatus(resp.StatusCode),
			Err:       &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)},
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &StageError{Stage: stage, Retryable: false, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// uploadName returns the filename the service expects for path, keeping
// the extension so the server can pick a decoder.
func uploadName(base, path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".wav"
	}
	return base + ext
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a":
		return "audio/m4a"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}
