package accent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Selection persists the selected profile id between runs.
type Selection interface {
	Load() (string, error)
	Save(id string) error
}

// SelectionFile stores the selection as a small YAML document.
type SelectionFile struct {
	Path string
}

type selectionDoc struct {
	Selected string `yaml:"selected"`
}

// Load returns the stored id, or "" if nothing was saved yet.
func (f SelectionFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("accent: read selection: %w", err)
	}

	var doc selectionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("accent: parse selection: %w", err)
	}
	return doc.Selected, nil
}

// Save writes id; an empty id clears the selection.
func (f SelectionFile) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("accent: create selection dir: %w", err)
	}
	data, err := yaml.Marshal(selectionDoc{Selected: id})
	if err != nil {
		return fmt.Errorf("accent: encode selection: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("accent: write selection: %w", err)
	}
	return nil
}
