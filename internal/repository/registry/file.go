package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/domain/build"
)

// Repository defines persistence operations for the ordered build registry.
type Repository interface {
	Get(ctx context.Context, id string) (build.Record, error)
	List(ctx context.Context) (*build.Document, error)
	Upsert(ctx context.Context, id string, rec build.Record, overwrite bool) (build.UpsertOutcome, error)
	Delete(ctx context.Context, id string) error
}

var (
	// ErrNotFound is returned when a build identifier is absent from the registry.
	ErrNotFound = errors.New("build not found")
	// ErrConflict is returned when an existing build is upserted without overwrite.
	ErrConflict = errors.New("build already exists")
)

// ConflictError carries the existing record's version so the caller can decide
// whether to retry with overwrite.
type ConflictError struct {
	// BuildID is the conflicting build identifier.
	BuildID string
	// ExistingVersion is the version already stored under BuildID.
	ExistingVersion string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("build %q already exists with version %q", e.BuildID, e.ExistingVersion)
}

// Is makes the error match ErrConflict for errors.Is checks.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FileRepository persists the registry as a single JSON document on disk.
// Every mutation is a full load-mutate-rewrite cycle guarded by a writer
// mutex; reads return snapshot copies so concurrent device-facing calls never
// observe in-place mutation.
type FileRepository struct {
	// path is the filesystem location of the registry document.
	path string
	// mu serializes load-mutate-rewrite cycles.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes the JSON registry
// document at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Get returns the record stored under the identifier.
func (r *FileRepository) Get(_ context.Context, id string) (build.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return build.Record{}, err
	}

	rec, ok := doc.Get(id)
	if !ok {
		return build.Record{}, ErrNotFound
	}

	return rec, nil
}

// List returns a snapshot of the whole registry in insertion order.
func (r *FileRepository) List(_ context.Context) (*build.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Upsert stores the record under the identifier. A new identifier is appended
// to the sequence; an existing one is replaced in place when overwrite is set,
// otherwise the registry is left untouched and a ConflictError is returned.
func (r *FileRepository) Upsert(
	_ context.Context,
	id string,
	rec build.Record,
	overwrite bool,
) (build.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return 0, err
	}

	if existing, ok := doc.Get(id); ok && !overwrite {
		return 0, &ConflictError{
			BuildID:         id,
			ExistingVersion: existing.Version,
		}
	}

	outcome := build.OutcomeUpdated
	if doc.Set(id, rec) {
		outcome = build.OutcomeCreated
	}

	if err = r.save(doc); err != nil {
		return 0, err
	}

	return outcome, nil
}

// Delete removes the identifier and its sequence slot.
func (r *FileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	if !doc.Delete(id) {
		return ErrNotFound
	}

	return r.save(doc)
}

// load reads the registry document from disk.
// A missing file reads as an empty document.
func (r *FileRepository) load() (*build.Document, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return build.NewDocument(), nil
		}

		return nil, fmt.Errorf("read registry document: %w", err)
	}

	doc := build.NewDocument()
	if err = json.Unmarshal(contents, doc); err != nil {
		return nil, fmt.Errorf("decode registry document: %w", err)
	}

	return doc, nil
}

// save rewrites the whole registry document. The document is written to a
// temporary file and renamed over the target so a crashed write never leaves
// a truncated registry behind.
func (r *FileRepository) save(doc *build.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("create temp registry document: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("write registry document: %w", err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close registry document: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("chmod registry document: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("publish registry document: %w", err)
	}

	return nil
}
