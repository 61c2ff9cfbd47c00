package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chaz8081/gostt-translate/internal/auth"
)

// SavedAccent is a voice profile as the service stores it.
type SavedAccent struct {
	ID       string
	Name     string
	Language string
	FilePath string
}

// UnmarshalJSON accepts numeric or string ids and either "language" or
// "language_code".
func (a *SavedAccent) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           json.RawMessage `json:"id"`
		Name         string          `json:"name"`
		AccentName   string          `json:"accent_name"`
		Language     string          `json:"language"`
		LanguageCode string          `json:"language_code"`
		Lang         string          `json:"lang"`
		FilePath     string          `json:"file_path"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := string(bytes.Trim(raw.ID, `"`))
	if id == "" || id == "null" {
		return fmt.Errorf("saved accent without id")
	}

	*a = SavedAccent{
		ID:       id,
		Name:     firstNonEmpty(raw.Name, raw.AccentName),
		Language: firstNonEmpty(raw.Language, raw.LanguageCode, raw.Lang),
		FilePath: raw.FilePath,
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ListAccents returns the caller's saved accents.
func (c *Client) ListAccents(ctx context.Context, creds auth.Credentials) ([]SavedAccent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	q := url.Values{"user_email": {creds.CallerID}}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/saved_accents/", q, nil, creds)
	if err != nil {
		return nil, &StageError{Stage: StageAccents, Err: err}
	}

	var out []SavedAccent
	if err := c.do(StageAccents, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAccent uploads an accent sample recorded at path.
func (c *Client) SaveAccent(ctx context.Context, creds auth.Credentials, path, name, language string) (SavedAccent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.TranslateTimeout)
	defer cancel()

	f := newForm()
	f.field("user_email", creds.CallerID)
	f.field("accent_name", name)
	f.field("lang", language)
	f.file("file", path, uploadName("accent", path), audioContentType(path))
	body, contentType, err := f.close()
	if err != nil {
		return SavedAccent{}, &StageError{Stage: StageAccents, Err: fmt.Errorf("building upload: %w", err)}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/save_accent/", nil, body, creds)
	if err != nil {
		return SavedAccent{}, &StageError{Stage: StageAccents, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	var out SavedAccent
	if err := c.do(StageAccents, req, &out); err != nil {
		return SavedAccent{}, err
	}
	return out, nil
}

// DeleteAccent removes a saved accent.
func (c *Client) DeleteAccent(ctx context.Context, creds auth.Credentials, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	q := url.Values{"user_email": {creds.CallerID}}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/saved_accent/"+url.PathEscape(id), q, nil, creds)
	if err != nil {
		return &StageError{Stage: StageAccents, Err: err}
	}
	return c.do(StageAccents, req, nil)
}

// WhoAmI returns the identity (email) that owns token. It implements
// auth.IdentityLookup.
func (c *Client) WhoAmI(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/me", nil, nil, auth.Credentials{Token: token})
	if err != nil {
		return "", &StageError{Stage: StageIdentity, Err: err}
	}

	var me struct {
		Email string `json:"email"`
	}
	if err := c.do(StageIdentity, req, &me); err != nil {
		return "", err
	}
	return me.Email, nil
}
