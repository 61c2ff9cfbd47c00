package api

import (
	"errors"
	"fmt"
)

// Stage names used in StageError.
const (
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageAccents    = "accents"
	StageIdentity   = "identity"
)

var (
	// ErrAuthExpired is returned when the service answers 401. It is never
	// retried by this package.
	ErrAuthExpired = errors.New("api: authorization expired")
	// ErrMalformedResponse marks a response body that is not the JSON the
	// service promises.
	ErrMalformedResponse = errors.New("api: malformed response")
	// ErrNoArtifact marks a synthesis response without an audio reference.
	ErrNoArtifact = errors.New("api: response has no audio artifact")
)

// StageError is a failed remote call, tagged with the pipeline stage it
// belongs to and whether repeating the call may succeed.
type StageError struct {
	Stage     string
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a StageError marked retryable.
func IsRetryable(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Retryable
}
