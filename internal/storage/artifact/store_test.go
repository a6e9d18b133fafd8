package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStore creates a store over temp directories.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()

	s, err := NewStore(filepath.Join(dir, "packages"), filepath.Join(dir, "trash"))
	require.NoError(t, err)

	return s
}

// TestStore_WriteAndExists verifies atomic publish and existence checks.
func TestStore_WriteAndExists(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.False(t, s.Exists("v1"))
	require.NoError(t, s.Write("v1", strings.NewReader("firmware bytes")))
	require.True(t, s.Exists("v1"))
	require.Equal(t, "ota-v1.zip", Filename("v1"))

	// No leftover temp files after publish.
	entries, err := os.ReadDir(filepath.Dir(s.Path("v1")))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestStore_ChecksumDeterministic verifies the digest matches a reference
// computation and is stable across calls.
func TestStore_ChecksumDeterministic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	content := strings.Repeat("firmware-block/", 2048)

	require.NoError(t, s.Write("v1", strings.NewReader(content)))

	want := sha256.Sum256([]byte(content))

	got, err := s.Checksum("v1")
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(want[:]), got)

	again, err := s.Checksum("v1")
	require.NoError(t, err)
	require.Equal(t, got, again)

	byName, err := s.ChecksumFile(Filename("v1"))
	require.NoError(t, err)
	require.Equal(t, got, byName)

	_, err = s.Checksum("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestStore_SoftDelete verifies content-preserving trash moves with unique names.
func TestStore_SoftDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Write("v1", strings.NewReader("first")))

	first, err := s.SoftDelete("v1")
	require.NoError(t, err)
	require.False(t, s.Exists("v1"))

	trashed, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), trashed)

	// A second delete of the same build lands under a different trash name.
	require.NoError(t, s.Write("v1", strings.NewReader("second")))

	second, err := s.SoftDelete("v1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = s.SoftDelete("v1")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestStore_OpenRejectsEscapes verifies download name validation.
func TestStore_OpenRejectsEscapes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Write("v1", strings.NewReader("content")))

	f, err := s.Open(Filename("v1"))
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.Equal(t, []byte("content"), data)

	for _, bad := range []string{"", "../metadata.json", "a/b.zip", ".hidden"} {
		_, err = s.Open(bad)
		require.Error(t, err, bad)
	}

	_, err = s.Open("ota-missing.zip")
	require.ErrorIs(t, err, ErrNotFound)
}
