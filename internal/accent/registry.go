package accent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the known profiles and the current selection. It is safe
// for concurrent use.
type Registry struct {
	store  Store
	sel    Selection
	logger *slog.Logger

	mu       sync.Mutex
	profiles []Profile
	selected string
}

// NewRegistry creates a Registry over store. sel may be nil, in which case
// the selection lives only in memory. A previously saved selection is
// restored; it is validated on the next Refresh or Snapshot.
func NewRegistry(store Store, sel Selection, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{store: store, sel: sel, logger: logger}
	if sel != nil {
		id, err := sel.Load()
		if err != nil {
			logger.Warn("could not restore accent selection", "error", err)
		}
		r.selected = id
	}
	return r
}

// Refresh reloads the profile list from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	profiles, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()
	return nil
}

// Profiles returns the profiles from the last Refresh.
func (r *Registry) Profiles() []Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Select makes id the current profile. id must be among the profiles from
// the last Refresh.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := find(r.profiles, id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.setLocked(id)
}

// Clear removes the selection; synthesis uses the default voice.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked("")
}

// SelectedID returns the raw selected id, which may be dangling.
func (r *Registry) SelectedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Current returns the selected profile from the cached list, or nil.
func (r *Registry) Current() *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := find(r.profiles, r.selected)
	if !ok {
		return nil
	}
	return &p
}

// Snapshot lists the store afresh and returns a copy of the selected
// profile if it still exists. A selection whose profile was deleted is
// dropped and nil is returned. If the listing fails, nil is returned and
// the selection is kept for later runs.
func (r *Registry) Snapshot(ctx context.Context) *Profile {
	r.mu.Lock()
	id := r.selected
	r.mu.Unlock()

	if id == "" {
		return nil
	}

	profiles, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("accent list failed, using default voice", "error", err)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles = profiles
	p, ok := find(profiles, id)
	if !ok {
		r.logger.Warn("selected accent no longer exists, using default voice", "accent", id)
		if r.selected == id {
			if err := r.setLocked(""); err != nil {
				r.logger.Warn("could not clear accent selection", "error", err)
			}
		}
		return nil
	}
	return &p
}

// Delete removes id from the store and clears it if it was selected.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.profiles {
		if p.ID == id {
			r.profiles = append(r.profiles[:i:i], r.profiles[i+1:]...)
			break
		}
	}
	if r.selected == id {
		return r.setLocked("")
	}
	return nil
}

// Save uploads a recorded sample and adds the new profile to the list.
func (r *Registry) Save(ctx context.Context, path, name, language string) (Profile, error) {
	p, err := r.store.Save(ctx, path, name, language)
	if err != nil {
		return Profile{}, err
	}
	r.mu.Lock()
	r.profiles = append(r.profiles, p)
	r.mu.Unlock()
	return p, nil
}

func (r *Registry) setLocked(id string) error {
	r.selected = id
	if r.sel == nil {
		return nil
	}
	return r.sel.Save(id)
}

func find(profiles []Profile, id string) (Profile, bool) {
	if id == "" {
		return Profile{}, false
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}
