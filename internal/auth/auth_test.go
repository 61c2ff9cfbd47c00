package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStatic(t *testing.T) {
	p := NewStatic("tok", "ana@example.com")
	creds, err := p.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Token != "tok" || creds.CallerID != "ana@example.com" {
		t.Errorf("Credentials() = %+v", creds)
	}
}

func TestStaticMissing(t *testing.T) {
	_, err := NewStatic("", "ana@example.com").Credentials(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Credentials() error = %v, want ErrNoCredentials", err)
	}
}

type fakeLookup struct {
	calls int
	id    string
	err   error
}

func (f *fakeLookup) WhoAmI(_ context.Context, token string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func TestMeResolverCaches(t *testing.T) {
	lookup := &fakeLookup{id: "ravi@example.com"}
	r := NewMeResolver("tok", lookup)

	for i := 0; i < 3; i++ {
		creds, err := r.Credentials(context.Background())
		if err != nil {
			t.Fatalf("Credentials() error = %v", err)
		}
		if creds.CallerID != "ravi@example.com" {
			t.Errorf("CallerID = %q", creds.CallerID)
		}
	}
	if lookup.calls != 1 {
		t.Errorf("lookup calls = %d, want 1", lookup.calls)
	}
}

func TestMeResolverDoesNotCacheFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("boom")}
	r := NewMeResolver("tok", lookup)

	if _, err := r.Credentials(context.Background()); err == nil {
		t.Fatal("Credentials() should fail when lookup fails")
	}

	lookup.err = nil
	lookup.id = "ravi@example.com"
	creds, err := r.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials() after recovery error = %v", err)
	}
	if creds.CallerID != "ravi@example.com" {
		t.Errorf("CallerID = %q", creds.CallerID)
	}
	if lookup.calls != 2 {
		t.Errorf("lookup calls = %d, want 2", lookup.calls)
	}
}

func TestMeResolverNoToken(t *testing.T) {
	lookup := &fakeLookup{id: "x"}
	_, err := NewMeResolver("", lookup).Credentials(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Credentials() error = %v, want ErrNoCredentials", err)
	}
	if lookup.calls != 0 {
		t.Errorf("lookup should not be called without a token")
	}
}
