// Package auth supplies the bearer credential and caller identity attached
// to every request sent to the translation service. Token issuance and
// refresh happen elsewhere; this package only hands out what it was given.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoCredentials is returned when no token is configured.
var ErrNoCredentials = errors.New("auth: no credentials configured")

// Credentials identify the caller to the remote service.
type Credentials struct {
	Token    string
	CallerID string
}

// Provider returns the credentials to use for the next request.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static is a Provider with fixed credentials, typically from the env file.
type Static struct {
	creds Credentials
}

// NewStatic returns a Provider that always returns token and callerID.
func NewStatic(token, callerID string) *Static {
	return &Static{creds: Credentials{Token: token, CallerID: callerID}}
}

// Credentials implements Provider.
func (s *Static) Credentials(_ context.Context) (Credentials, error) {
	if s.creds.Token == "" || s.creds.CallerID == "" {
		return Credentials{}, ErrNoCredentials
	}
	return s.creds, nil
}

// IdentityLookup resolves the caller identity that belongs to a token.
type IdentityLookup interface {
	WhoAmI(ctx context.Context, token string) (string, error)
}

// MeResolver returns a fixed token and looks the caller identity up once
// per token, caching the result. A failed lookup is not cached.
type MeResolver struct {
	token  string
	lookup IdentityLookup

	mu       sync.Mutex
	callerID string
}

// NewMeResolver returns a Provider that resolves the caller id via lookup.
func NewMeResolver(token string, lookup IdentityLookup) *MeResolver {
	return &MeResolver{token: token, lookup: lookup}
}

// Credentials implements Provider.
func (r *MeResolver) Credentials(ctx context.Context) (Credentials, error) {
	if r.token == "" {
		return Credentials{}, ErrNoCredentials
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.callerID == "" {
		id, err := r.lookup.WhoAmI(ctx, r.token)
		if err != nil {
			return Credentials{}, fmt.Errorf("auth: resolve caller: %w", err)
		}
		if id == "" {
			return Credentials{}, fmt.Errorf("auth: resolve caller: empty identity")
		}
		r.callerID = id
	}

	return Credentials{Token: r.token, CallerID: r.callerID}, nil
}
