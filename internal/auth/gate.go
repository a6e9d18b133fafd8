package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oshokin/ota-server/internal/repository/apikey"
)

// secretBytes is the entropy of a generated API key secret (256 bits).
const secretBytes = 32

var (
	// ErrUnauthorized is returned for any failed authentication. The error is
	// deliberately uniform so callers cannot probe which keys exist.
	ErrUnauthorized = errors.New("unauthorized")
	// errEmptyName is returned when a key is generated without a name.
	errEmptyName = errors.New("api key name must not be empty")
)

// Gate verifies bearer credentials against the API key set and manages the
// set's lifecycle.
type Gate struct {
	// repo persists the API key set.
	repo apikey.Repository
}

// NewGate creates a gate over the provided key repository.
func NewGate(repo apikey.Repository) *Gate {
	return &Gate{
		repo: repo,
	}
}

// Authenticate returns the name owning the bearer token. Every secret is
// compared in constant time and every failure mode yields the same error.
func (g *Gate) Authenticate(ctx context.Context, token string) (string, error) {
	keys, err := g.repo.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load api keys: %w", err)
	}

	if token == "" {
		return "", ErrUnauthorized
	}

	for name, secret := range keys {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1 {
			return name, nil
		}
	}

	return "", ErrUnauthorized
}

// Generate creates a named API key with a cryptographically random URL-safe
// secret and returns the secret. The secret is shown to the caller once and
// only its stored form exists afterwards.
func (g *Gate) Generate(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errEmptyName
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}

	secret := base64.RawURLEncoding.EncodeToString(raw)

	if err := g.repo.Insert(ctx, name, secret); err != nil {
		return "", err
	}

	return secret, nil
}

// Revoke removes the named API key.
func (g *Gate) Revoke(ctx context.Context, name string) error {
	return g.repo.Remove(ctx, name)
}

// List returns the key names in sorted order. Secrets are never listed.
func (g *Gate) List(ctx context.Context) ([]string, error) {
	keys, err := g.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load api keys: %w", err)
	}

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}
