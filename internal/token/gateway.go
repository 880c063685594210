// Package token persists the bearer token for the current process.
//
// The Gateway is a thin load/save/clear layer over an injected Persister; it
// performs no caching and does not interpret the token beyond the optional
// claim inspection in claims.go.
package token

import (
	"errors"
	"fmt"
)

// CanonicalKey is the single storage key the bearer token lives under.
// Login, logout and user hydration all read and write this key.
const CanonicalKey = "auth_token"

// ErrEmptyToken is returned when saving an empty token
var ErrEmptyToken = errors.New("empty token")

// Gateway loads, saves and clears the bearer token
type Gateway struct {
	persister Persister
	key       string
}

// NewGateway returns a gateway writing through p under CanonicalKey
func NewGateway(p Persister) *Gateway {
	return &Gateway{persister: p, key: CanonicalKey}
}

// Load returns the stored token, or "" when none is stored
func (g *Gateway) Load() (string, error) {
	tok, err := g.persister.Get(g.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return tok, nil
}

// Save persists token, replacing any previous value
func (g *Gateway) Save(tok string) error {
	if tok == "" {
		return ErrEmptyToken
	}
	if err := g.persister.Set(g.key, tok); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear wipes the stored token. Clearing an empty store is not an error.
func (g *Gateway) Clear() error {
	if err := g.persister.Remove(g.key); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
