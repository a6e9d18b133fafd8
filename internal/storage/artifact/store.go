package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/ota-server/internal/config"
)

const (
	// packagePrefix and packageExt form the standardized artifact name
	// ota-<build_id>.zip.
	packagePrefix = "ota-"
	packageExt    = ".zip"

	// trashTimestampLayout names trashed artifacts down to the nanosecond so
	// repeated deletes of the same build never collide.
	trashTimestampLayout = "20060102-150405.000000000"

	// checksumChunkSize bounds memory during checksum streaming.
	checksumChunkSize = 4096
)

var (
	// ErrNotFound is returned when the artifact file does not exist.
	ErrNotFound = errors.New("artifact not found")
	// errBadFilename is returned for download names that escape the package directory.
	errBadFilename = errors.New("invalid package filename")
)

// Store keeps update packages on the local filesystem. Published artifacts
// live in the packages directory under standardized names; soft-deleted ones
// are renamed into the trash directory and never purged.
type Store struct {
	// packagesDir holds published artifacts.
	packagesDir string
	// trashDir holds soft-deleted artifacts.
	trashDir string
}

// NewStore creates a store rooted at the provided directories, creating them
// if needed.
func NewStore(packagesDir, trashDir string) (*Store, error) {
	s := &Store{
		packagesDir: filepath.Clean(packagesDir),
		trashDir:    filepath.Clean(trashDir),
	}

	for _, dir := range []string{s.packagesDir, s.trashDir} {
		if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("create artifact directory %q: %w", dir, err)
		}
	}

	return s, nil
}

// Filename returns the standardized package name for a build.
func Filename(id string) string {
	return packagePrefix + id + packageExt
}

// Path returns the on-disk location of a build's artifact.
func (s *Store) Path(id string) string {
	return filepath.Join(s.packagesDir, Filename(id))
}

// Exists reports whether the build's artifact is currently published.
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(s.Path(id))

	return err == nil && info.Mode().IsRegular()
}

// ModTime returns the artifact's modification time, used by the modtime
// ordering strategy.
func (s *Store) ModTime(id string) (time.Time, error) {
	info, err := os.Stat(s.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, ErrNotFound
		}

		return time.Time{}, fmt.Errorf("stat artifact: %w", err)
	}

	return info.ModTime(), nil
}

// Write stores the package content under the build's standardized name.
// The content is written to a temporary file and atomically renamed into
// place on full success, so a concurrent reader never observes a partially
// written artifact.
func (s *Store) Write(id string, content io.Reader) error {
	tmp, err := os.CreateTemp(s.packagesDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err = io.Copy(tmp, content); err != nil {
		cleanup()

		return fmt.Errorf("write artifact: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		cleanup()

		return fmt.Errorf("sync artifact: %w", err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close artifact: %w", err)
	}

	if err = os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("chmod artifact: %w", err)
	}

	if err = os.Rename(tmpName, s.Path(id)); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("publish artifact: %w", err)
	}

	return nil
}

// Checksum returns the hex SHA-256 digest of the build's artifact.
func (s *Store) Checksum(id string) (string, error) {
	return s.checksumPath(s.Path(id))
}

// ChecksumFile returns the hex SHA-256 digest of a package by filename.
func (s *Store) ChecksumFile(filename string) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return "", err
	}

	return s.checksumPath(path)
}

// checksumPath streams the file through SHA-256 in fixed-size chunks so
// memory stays bounded regardless of artifact size.
func (s *Store) checksumPath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()

	buf := make([]byte, checksumChunkSize)
	if _, err = io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Open returns the published package by filename for download.
func (s *Store) Open(filename string) (*os.File, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("open artifact: %w", err)
	}

	return f, nil
}

// SoftDelete moves the build's artifact into the trash directory under a
// timestamp-suffixed name and returns the trash path. The content is
// preserved byte for byte; nothing is ever purged from the trash.
func (s *Store) SoftDelete(id string) (string, error) {
	source := s.Path(id)

	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("stat artifact: %w", err)
	}

	trashName := fmt.Sprintf("%s%s_%s%s",
		packagePrefix, id, time.Now().Format(trashTimestampLayout), packageExt)
	target := filepath.Join(s.trashDir, trashName)

	if err := os.Rename(source, target); err != nil {
		return "", fmt.Errorf("trash artifact: %w", err)
	}

	return target, nil
}

// resolve maps a download filename to its path inside the packages directory,
// rejecting names that would escape it.
func (s *Store) resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q", errBadFilename, filename)
	}

	return filepath.Join(s.packagesDir, filename), nil
}
