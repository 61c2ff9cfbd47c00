package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/chaz8081/gostt-translate/internal/auth"
)

// SynthesizeRequest asks the service to speak TranslatedText. An empty
// AccentID means the default voice.
type SynthesizeRequest struct {
	Credentials    auth.Credentials
	TranslatedText string
	Transcription  string
	TargetLang     string
	AccentID       string
}

// SynthesizeResult carries the reference to the generated audio.
type SynthesizeResult struct {
	ArtifactRef string `json:"translated_audio"`
	ModelUsed   string `json:"model_used,omitempty"`
}

// Synthesize generates speech for the translated text. It uses the longer
// synthesis timeout.
func (c *Client) Synthesize(ctx context.Context, r SynthesizeRequest) (SynthesizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.SynthesizeTimeout)
	defer cancel()

	useAccent := r.AccentID != ""

	f := newForm()
	f.field("user_email", r.Credentials.CallerID)
	f.field("translated_text", r.TranslatedText)
	f.field("transcription", r.Transcription)
	f.field("target_lang", r.TargetLang)
	f.field("use_saved_accent", strconv.FormatBool(useAccent))
	if useAccent {
		f.field("saved_accent_id", r.AccentID)
	}
	body, contentType, err := f.close()
	if err != nil {
		return SynthesizeResult{}, &StageError{Stage: StageSynthesize, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/cloneaudio/", nil, body, r.Credentials)
	if err != nil {
		return SynthesizeResult{}, &StageError{Stage: StageSynthesize, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	var res SynthesizeResult
	if err := c.do(StageSynthesize, req, &res); err != nil {
		return SynthesizeResult{}, err
	}
	if res.ArtifactRef == "" {
		return SynthesizeResult{}, &StageError{Stage: StageSynthesize, Retryable: false, Err: ErrNoArtifact}
	}
	return res, nil
}
