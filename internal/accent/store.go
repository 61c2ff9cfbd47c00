// Package accent manages saved voice profiles and the user's current
// selection of one for synthesis.
package accent

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/auth"
)

// ErrNotFound is returned when an id does not name a known profile.
var ErrNotFound = errors.New("accent: profile not found")

// Profile is a saved voice sample. Profiles are immutable; a run keeps the
// copy it snapshotted.
type Profile struct {
	ID       string
	Name     string
	Language string // NLLB code of the sample
	AudioRef string // server-side path of the sample
}

// Store lists and edits the saved profiles.
type Store interface {
	List(ctx context.Context) ([]Profile, error)
	Save(ctx context.Context, path, name, language string) (Profile, error)
	Delete(ctx context.Context, id string) error
}

// HTTPStore is a Store backed by the translation service.
type HTTPStore struct {
	client *api.Client
	creds  auth.Provider
}

// NewHTTPStore returns a Store that talks to client with creds.
func NewHTTPStore(client *api.Client, creds auth.Provider) *HTTPStore {
	return &HTTPStore{client: client, creds: creds}
}

// List implements Store.
func (s *HTTPStore) List(ctx context.Context) ([]Profile, error) {
	c, err := s.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("accent: list: %w", err)
	}
	saved, err := s.client.ListAccents(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("accent: list: %w", err)
	}
	out := make([]Profile, 0, len(saved))
	for _, a := range saved {
		out = append(out, fromSaved(a))
	}
	return out, nil
}

// Save implements Store. path is a recorded sample.
func (s *HTTPStore) Save(ctx context.Context, path, name, language string) (Profile, error) {
	c, err := s.creds.Credentials(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("accent: save: %w", err)
	}
	a, err := s.client.SaveAccent(ctx, c, path, name, language)
	if err != nil {
		return Profile{}, fmt.Errorf("accent: save: %w", err)
	}
	return fromSaved(a), nil
}

// Delete implements Store.
func (s *HTTPStore) Delete(ctx context.Context, id string) error {
	c, err := s.creds.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("accent: delete: %w", err)
	}
	if err := s.client.DeleteAccent(ctx, c, id); err != nil {
		return fmt.Errorf("accent: delete %s: %w", id, err)
	}
	return nil
}

func fromSaved(a api.SavedAccent) Profile {
	return Profile{ID: a.ID, Name: a.Name, Language: a.Language, AudioRef: a.FilePath}
}
