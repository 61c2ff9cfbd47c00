package pipeline

import (
	"errors"

	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/auth"
	"github.com/chaz8081/gostt-translate/internal/permission"
	"github.com/chaz8081/gostt-translate/internal/playback"
	"github.com/chaz8081/gostt-translate/internal/recording"
)

// Message returns a short user-facing description of err. Transport
// details are never included.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var unusable *recording.RecordingUnusableError
	var stage *api.StageError

	switch {
	case errors.Is(err, permission.ErrPermanentlyDenied):
		return "Microphone access is blocked. Allow it in system settings and try again."
	case errors.Is(err, permission.ErrDenied):
		return "Microphone permission denied."
	case errors.Is(err, api.ErrAuthExpired):
		return "Your session has expired. Sign in again."
	case errors.Is(err, auth.ErrNoCredentials):
		return "Not signed in."
	case errors.Is(err, ErrRunActive):
		return "A translation is already in progress."
	case errors.Is(err, ErrNothingToPlay):
		return "Nothing to play yet."
	case errors.As(err, &unusable):
		return "The recording could not be used. Please record again."
	case errors.Is(err, playback.ErrPlaybackFailed):
		return "Could not play the translated audio."
	case errors.As(err, &stage):
		switch stage.Stage {
		case api.StageTranslate:
			if stage.Retryable {
				return "Translation failed. Please try again."
			}
			return "Translation failed."
		case api.StageSynthesize:
			return "Voice generation failed. Showing text only."
		default:
			return "Request failed."
		}
	default:
		return "Something went wrong."
	}
}
