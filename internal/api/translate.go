package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chaz8081/gostt-translate/internal/auth"
)

// TranslateRequest uploads one recording for transcription and translation.
type TranslateRequest struct {
	Credentials auth.Credentials
	FilePath    string
	SourceLang  string
	TargetLang  string
}

// TranslateResult is the service's answer. Translation may be empty when
// nothing intelligible was said.
type TranslateResult struct {
	Transcription string `json:"transcription"`
	Translation   string `json:"translation"`
}

// Translate uploads the recording and returns its transcription and
// translation.
func (c *Client) Translate(ctx context.Context, r TranslateRequest) (TranslateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.TranslateTimeout)
	defer cancel()

	f := newForm()
	f.field("user_email", r.Credentials.CallerID)
	f.field("source_lang", r.SourceLang)
	f.field("target_lang", r.TargetLang)
	f.file("file", r.FilePath, uploadName("recording", r.FilePath), audioContentType(r.FilePath))
	body, contentType, err := f.close()
	if err != nil {
		return TranslateResult{}, &StageError{Stage: StageTranslate, Retryable: false, Err: fmt.Errorf("building upload: %w", err)}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/translate/", nil, body, r.Credentials)
	if err != nil {
		return TranslateResult{}, &StageError{Stage: StageTranslate, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	var res TranslateResult
	if err := c.do(StageTranslate, req, &res); err != nil {
		return TranslateResult{}, err
	}
	return res, nil
}
