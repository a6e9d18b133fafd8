package auth

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ota-server/internal/repository/apikey"
)

// newTestGate builds a gate over a file repository in a temp directory.
func newTestGate(t *testing.T) *Gate {
	t.Helper()

	return NewGate(apikey.NewFileRepository(filepath.Join(t.TempDir(), "api_keys.json")))
}

// TestGate_GenerateAndAuthenticate covers the happy path and secret format.
func TestGate_GenerateAndAuthenticate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := newTestGate(t)

	secret, err := gate.Generate(ctx, "ci")
	require.NoError(t, err)

	// URL-safe, at least 256 bits of entropy.
	raw, err := base64.RawURLEncoding.DecodeString(secret)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 32)

	name, err := gate.Authenticate(ctx, secret)
	require.NoError(t, err)
	require.Equal(t, "ci", name)

	// Secrets are unique across calls.
	other, err := gate.Generate(ctx, "factory")
	require.NoError(t, err)
	require.NotEqual(t, secret, other)

	// Duplicate names are rejected.
	_, err = gate.Generate(ctx, "ci")
	require.ErrorIs(t, err, apikey.ErrDuplicateName)

	// Empty names are rejected.
	_, err = gate.Generate(ctx, "  ")
	require.Error(t, err)
}

// TestGate_UniformFailure verifies unknown and empty tokens fail identically.
func TestGate_UniformFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := newTestGate(t)

	_, err := gate.Generate(ctx, "ci")
	require.NoError(t, err)

	_, unknownErr := gate.Authenticate(ctx, "not-a-real-secret")
	require.ErrorIs(t, unknownErr, ErrUnauthorized)

	_, emptyErr := gate.Authenticate(ctx, "")
	require.ErrorIs(t, emptyErr, ErrUnauthorized)

	require.Equal(t, unknownErr.Error(), emptyErr.Error())
}

// TestGate_RevokeAndList covers revocation and name listing.
func TestGate_RevokeAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := newTestGate(t)

	secret, err := gate.Generate(ctx, "ci")
	require.NoError(t, err)

	_, err = gate.Generate(ctx, "factory")
	require.NoError(t, err)

	names, err := gate.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ci", "factory"}, names)

	require.NoError(t, gate.Revoke(ctx, "ci"))
	require.ErrorIs(t, gate.Revoke(ctx, "ci"), apikey.ErrNotFound)

	// Revoked secrets stop authenticating.
	_, err = gate.Authenticate(ctx, secret)
	require.ErrorIs(t, err, ErrUnauthorized)
}
