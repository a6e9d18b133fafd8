package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/ota-server/internal/config"
)

// Repository defines persistence operations for the API key set.
type Repository interface {
	All(ctx context.Context) (map[string]string, error)
	Insert(ctx context.Context, name, secret string) error
	Remove(ctx context.Context, name string) error
}

var (
	// ErrNotFound is returned when a key name is absent from the set.
	ErrNotFound = errors.New("api key not found")
	// ErrDuplicateName is returned when a key name is already taken.
	ErrDuplicateName = errors.New("api key name already exists")
)

// FileRepository persists the API key set as a single JSON document mapping
// key names to secrets. Mutations are load-mutate-rewrite cycles under a
// writer mutex, matching the registry repository.
type FileRepository struct {
	// path is the filesystem location of the key document.
	path string
	// mu serializes load-mutate-rewrite cycles.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes the JSON key
// document at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// All returns a snapshot copy of the name to secret mapping.
func (r *FileRepository) All(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.load()
	if err != nil {
		return nil, err
	}

	return maps.Clone(keys), nil
}

// Insert stores a new named secret. Existing names are rejected so a secret
// is never silently replaced.
func (r *FileRepository) Insert(_ context.Context, name, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.load()
	if err != nil {
		return err
	}

	if _, ok := keys[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	keys[name] = secret

	return r.save(keys)
}

// Remove deletes the named secret.
func (r *FileRepository) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.load()
	if err != nil {
		return err
	}

	if _, ok := keys[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	delete(keys, name)

	return r.save(keys)
}

// load reads the key document from disk. A missing file reads as empty.
func (r *FileRepository) load() (map[string]string, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}

		return nil, fmt.Errorf("read key document: %w", err)
	}

	keys := make(map[string]string)
	if err = json.Unmarshal(contents, &keys); err != nil {
		return nil, fmt.Errorf("decode key document: %w", err)
	}

	return keys, nil
}

// save rewrites the whole key document.
func (r *FileRepository) save(keys map[string]string) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key document: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write key document: %w", err)
	}

	return nil
}
