package accent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/api/apitest"
	"github.com/chaz8081/gostt-translate/internal/auth"
)

type fakeStore struct {
	mu       sync.Mutex
	profiles []Profile
	listErr  error
	lists    int
}

func (f *fakeStore) List(_ context.Context) ([]Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Profile, len(f.profiles))
	copy(out, f.profiles)
	return out, nil
}

func (f *fakeStore) Save(_ context.Context, _, name, language string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := Profile{ID: name + "-id", Name: name, Language: language}
	f.profiles = append(f.profiles, p)
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.profiles {
		if p.ID == id {
			f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// deleteBehindBack removes a profile without going through the registry.
func (f *fakeStore) deleteBehindBack(id string) {
	_ = f.Delete(context.Background(), id)
}

type memSelection struct {
	id    string
	saves int
}

func (m *memSelection) Load() (string, error) { return m.id, nil }
func (m *memSelection) Save(id string) error {
	m.id = id
	m.saves++
	return nil
}

func twoProfiles() *fakeStore {
	return &fakeStore{profiles: []Profile{
		{ID: "1", Name: "Grandma", Language: "hin_Deva"},
		{ID: "2", Name: "Me", Language: "eng_Latn"},
	}}
}

func TestSelectRequiresKnownProfile(t *testing.T) {
	r := NewRegistry(twoProfiles(), nil, nil)

	if err := r.Select("1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Select before Refresh error = %v, want ErrNotFound", err)
	}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if err := r.Select("1"); err != nil {
		t.Fatalf("Select(1) error: %v", err)
	}
	cur := r.Current()
	if cur == nil || cur.Name != "Grandma" {
		t.Errorf("Current() = %+v, want Grandma", cur)
	}

	if err := r.Select("9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Select(9) error = %v, want ErrNotFound", err)
	}
	if r.SelectedID() != "1" {
		t.Errorf("failed Select changed selection to %q", r.SelectedID())
	}
}

func TestClear(t *testing.T) {
	sel := &memSelection{}
	r := NewRegistry(twoProfiles(), sel, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("2")

	if err := r.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if r.Current() != nil {
		t.Error("Current() should be nil after Clear")
	}
	if sel.id != "" {
		t.Errorf("persisted selection = %q, want empty", sel.id)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, nil, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("1")

	snap := r.Snapshot(context.Background())
	if snap == nil || snap.ID != "1" {
		t.Fatalf("Snapshot() = %+v, want profile 1", snap)
	}

	_ = r.Select("2")
	if snap.ID != "1" {
		t.Errorf("snapshot changed after reselect: %+v", snap)
	}
}

func TestSnapshotListsAfresh(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, nil, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("1")

	before := store.lists
	r.Snapshot(context.Background())
	if store.lists != before+1 {
		t.Errorf("Snapshot made %d list calls, want 1", store.lists-before)
	}
}

func TestSnapshotDanglingSelection(t *testing.T) {
	store := twoProfiles()
	sel := &memSelection{}
	r := NewRegistry(store, sel, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("1")

	store.deleteBehindBack("1")

	if snap := r.Snapshot(context.Background()); snap != nil {
		t.Fatalf("Snapshot() = %+v, want nil for deleted profile", snap)
	}
	if r.SelectedID() != "" {
		t.Errorf("dangling selection kept: %q", r.SelectedID())
	}
	if sel.id != "" {
		t.Errorf("persisted selection = %q, want cleared", sel.id)
	}
}

func TestSnapshotListFailureKeepsSelection(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, nil, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("1")

	store.listErr = errors.New("offline")

	if snap := r.Snapshot(context.Background()); snap != nil {
		t.Errorf("Snapshot() = %+v, want nil when listing fails", snap)
	}
	if r.SelectedID() != "1" {
		t.Errorf("SelectedID() = %q, want 1 kept", r.SelectedID())
	}
}

func TestSnapshotWithoutSelectionSkipsStore(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, nil, nil)

	if snap := r.Snapshot(context.Background()); snap != nil {
		t.Errorf("Snapshot() = %+v, want nil", snap)
	}
	if store.lists != 0 {
		t.Errorf("list calls = %d, want 0", store.lists)
	}
}

func TestRestoresPersistedSelection(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, &memSelection{id: "2"}, nil)

	snap := r.Snapshot(context.Background())
	if snap == nil || snap.ID != "2" {
		t.Errorf("Snapshot() = %+v, want restored profile 2", snap)
	}
}

func TestDeleteClearsSelection(t *testing.T) {
	store := twoProfiles()
	r := NewRegistry(store, nil, nil)
	_ = r.Refresh(context.Background())
	_ = r.Select("2")

	if err := r.Delete(context.Background(), "2"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if r.SelectedID() != "" {
		t.Errorf("SelectedID() = %q, want empty", r.SelectedID())
	}
	if got := r.Profiles(); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("Profiles() = %+v", got)
	}
}

func TestSaveAddsProfile(t *testing.T) {
	r := NewRegistry(&fakeStore{}, nil, nil)

	p, err := r.Save(context.Background(), "/tmp/a.wav", "Dad", "spa_Latn")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := r.Select(p.ID); err != nil {
		t.Errorf("Select(saved) error: %v", err)
	}
}

func TestSelectionFile(t *testing.T) {
	f := SelectionFile{Path: filepath.Join(t.TempDir(), "nested", "accent.yaml")}

	id, err := f.Load()
	if err != nil || id != "" {
		t.Fatalf("Load() on missing file = %q, %v", id, err)
	}

	if err := f.Save("42"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	id, err = f.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if id != "42" {
		t.Errorf("Load() = %q, want %q", id, "42")
	}

	if err := os.WriteFile(f.Path, []byte("selected: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestHTTPStore(t *testing.T) {
	srv := apitest.New(t)
	srv.AddAccent("Grandma", "hin_Deva")

	client, err := api.New(srv.URL, api.Options{})
	if err != nil {
		t.Fatal(err)
	}
	store := NewHTTPStore(client, auth.NewStatic(apitest.Token, apitest.Email))
	ctx := context.Background()

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List() returned %d profiles, want 1", len(list))
	}
	want := Profile{ID: "1", Name: "Grandma", Language: "hin_Deva", AudioRef: "accents/1.wav"}
	if list[0] != want {
		t.Errorf("List()[0] = %+v, want %+v", list[0], want)
	}

	sample := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(sample, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := store.Save(ctx, sample, "Me", "eng_Latn")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if p.ID != "2" {
		t.Errorf("Save() id = %q, want 2", p.ID)
	}

	if err := store.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if got := srv.Accents(); len(got) != 1 {
		t.Errorf("server has %d accents, want 1", len(got))
	}
}

func TestHTTPStoreNoCredentials(t *testing.T) {
	srv := apitest.New(t)
	client, _ := api.New(srv.URL, api.Options{})
	store := NewHTTPStore(client, auth.NewStatic("", ""))

	if _, err := store.List(context.Background()); !errors.Is(err, auth.ErrNoCredentials) {
		t.Errorf("List() error = %v, want ErrNoCredentials", err)
	}
	if srv.Hits(apitest.RouteListAccents) != 0 {
		t.Error("no request should be sent without credentials")
	}
}
