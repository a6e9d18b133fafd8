package integrity

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testKeyBits keeps key generation fast in tests.
const testKeyBits = 1024

// fakeSource is an in-memory ChecksumSource.
type fakeSource struct {
	// checksums maps build identifiers to digests.
	checksums map[string]string
	// err is returned from every call when set.
	err error
}

// Checksum returns the canned digest for the identifier.
func (f *fakeSource) Checksum(id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return f.checksums[id], nil
}

// newTestService builds a Service over a fresh key and the provided source.
func newTestService(t *testing.T, source ChecksumSource) *Service {
	t.Helper()

	key, err := GeneratePrivateKey(testKeyBits)
	require.NoError(t, err)

	return NewService(key, source)
}

// TestService_SignDeterministic verifies identical inputs yield identical
// signatures and that the signature verifies against the public key.
func TestService_SignDeterministic(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeSource{})
	checksum := strings.Repeat("ab", 32)

	first, err := s.Sign(checksum)
	require.NoError(t, err)

	second, err := s.Sign(checksum)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Different input, different signature.
	other, err := s.Sign(strings.Repeat("cd", 32))
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	// The signature verifies as PKCS#1v1.5 over SHA-256 of the checksum text.
	signature, err := hex.DecodeString(first)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(checksum))
	require.NoError(t, rsa.VerifyPKCS1v15(&s.key.PublicKey, crypto.SHA256, digest[:], signature))
}

// TestService_Validate covers cached, recomputed and case-insensitive paths.
func TestService_Validate(t *testing.T) {
	t.Parallel()

	digest := "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
	source := &fakeSource{checksums: map[string]string{"v1": digest}}
	s := newTestService(t, source)

	// Cached checksum, exact match.
	result, err := s.Validate("v1", digest, digest)
	require.NoError(t, err)
	require.True(t, result.IsValid)

	// Uppercase device checksum matches lowercase stored digest.
	result, err = s.Validate("v1", digest, strings.ToUpper(digest))
	require.NoError(t, err)
	require.True(t, result.IsValid)

	// Mismatch is a successful call, not an error.
	result, err = s.Validate("v1", digest, strings.Repeat("00", 32))
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.NotEmpty(t, result.Message)

	// Empty cache falls back to the store.
	result, err = s.Validate("v1", "", digest)
	require.NoError(t, err)
	require.True(t, result.IsValid)
}

// TestKeyRoundtripAndPublicPEM verifies save/load and public key export.
func TestKeyRoundtripAndPublicPEM(t *testing.T) {
	t.Parallel()

	key, err := GeneratePrivateKey(testKeyBits)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "private.pem")
	require.NoError(t, SavePrivateKey(path, key))

	loaded, err := LoadPrivateKey(path)
	require.NoError(t, err)
	require.True(t, key.Equal(loaded))

	pemText, err := NewService(key, &fakeSource{}).PublicPEM()
	require.NoError(t, err)
	require.Contains(t, pemText, "BEGIN PUBLIC KEY")

	// Missing file fails fast.
	_, err = LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}
