package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/ota-server/internal/auth"
	"github.com/oshokin/ota-server/internal/domain/build"
	"github.com/oshokin/ota-server/internal/domain/update"
	"github.com/oshokin/ota-server/internal/integrity"
	"github.com/oshokin/ota-server/internal/logger"
	"github.com/oshokin/ota-server/internal/repository/registry"
	"github.com/oshokin/ota-server/internal/resolver"
	"github.com/oshokin/ota-server/internal/storage/artifact"
)

// errEmptyBuildID rejects admin requests without a build identifier.
var errEmptyBuildID = errors.New("build id must not be empty")

// Service orchestrates the registry, artifact store, integrity service,
// resolver and auth gate behind the transport layer. All handles are wired
// once at startup and held explicitly.
type Service struct {
	// registry stores build metadata.
	registry registry.Repository
	// store keeps package files.
	store *artifact.Store
	// integrity computes and signs checksums.
	integrity *integrity.Service
	// resolver computes next builds.
	resolver *resolver.Resolver
	// gate verifies and manages API keys.
	gate *auth.Gate
}

// NewService wires the components together.
func NewService(
	reg registry.Repository,
	store *artifact.Store,
	integritySvc *integrity.Service,
	res *resolver.Resolver,
	gate *auth.Gate,
) *Service {
	return &Service{
		registry:  reg,
		store:     store,
		integrity: integritySvc,
		resolver:  res,
		gate:      gate,
	}
}

// CheckUpdate answers a device reporting its current build. The call is
// side-effect-free: checksums are recomputed rather than cached back.
func (s *Service) CheckUpdate(ctx context.Context, currentID string) (*update.Decision, error) {
	res, err := s.resolver.Resolve(ctx, currentID)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case resolver.StatusNotFound:
		return &update.Decision{Status: update.StatusUnknownBuild}, nil
	case resolver.StatusUpToDate:
		return &update.Decision{Status: update.StatusUpToDate}, nil
	case resolver.StatusNext:
	}

	checksum := res.Record.Checksum
	if checksum == "" {
		checksum, err = s.integrity.Checksum(res.BuildID)
		if err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				// The package vanished between the existence check and the
				// checksum read.
				return &update.Decision{Status: update.StatusPackageMissing}, nil
			}

			return nil, err
		}
	}

	signature, err := s.integrity.Sign(checksum)
	if err != nil {
		return nil, err
	}

	filename := res.Record.Filename
	if filename == "" {
		filename = artifact.Filename(res.BuildID)
	}

	logger.InfoKV(ctx, "Update available",
		"current_build", currentID, "next_build", res.BuildID, "version", res.Record.Version)

	return &update.Decision{
		Status:     update.StatusAvailable,
		BuildID:    res.BuildID,
		Version:    res.Record.Version,
		PackageURL: "/packages/" + filename,
		PatchNotes: res.Record.PatchNotes,
		Checksum:   checksum,
		Signature:  signature,
	}, nil
}

// ValidateChecksum compares a device-supplied checksum against the server's.
func (s *Service) ValidateChecksum(ctx context.Context, id, provided string) (integrity.Validation, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return integrity.Validation{}, err
	}

	return s.integrity.Validate(id, rec.Checksum, provided)
}

// GetBuild returns one build's metadata.
func (s *Service) GetBuild(ctx context.Context, id string) (build.Record, error) {
	return s.registry.Get(ctx, id)
}

// ListBuilds returns a registry snapshot in insertion order.
func (s *Service) ListBuilds(ctx context.Context) (*build.Document, error) {
	return s.registry.List(ctx)
}

// PackageChecksum hashes a package by filename and signs the digest.
func (s *Service) PackageChecksum(_ context.Context, filename string) (update.ChecksumInfo, error) {
	checksum, err := s.store.ChecksumFile(filename)
	if err != nil {
		return update.ChecksumInfo{}, err
	}

	signature, err := s.integrity.Sign(checksum)
	if err != nil {
		return update.ChecksumInfo{}, err
	}

	return update.ChecksumInfo{
		Filename:  filename,
		Checksum:  checksum,
		Signature: signature,
	}, nil
}

// OpenPackage returns a published package for download.
func (s *Service) OpenPackage(_ context.Context, filename string) (*os.File, error) {
	return s.store.Open(filename)
}

// PublicKeyPEM returns the signature verification key for devices.
func (s *Service) PublicKeyPEM(context.Context) (string, error) {
	return s.integrity.PublicPEM()
}

// UpsertBuild creates or replaces a build. When package content is supplied
// it is published atomically and its checksum cached in the record before the
// registry references it, so a device never resolves to a half-written file.
func (s *Service) UpsertBuild(ctx context.Context, input update.UpsertInput) (build.UpsertOutcome, build.Record, error) {
	if input.BuildID == "" {
		return 0, build.Record{}, errEmptyBuildID
	}

	existing, err := s.registry.Get(ctx, input.BuildID)

	switch {
	case err == nil:
		if !input.Overwrite {
			return 0, build.Record{}, &registry.ConflictError{
				BuildID:         input.BuildID,
				ExistingVersion: existing.Version,
			}
		}
	case errors.Is(err, registry.ErrNotFound):
		existing = build.Record{}
	default:
		return 0, build.Record{}, err
	}

	rec := build.Record{
		Version:     input.Version,
		Filename:    artifact.Filename(input.BuildID),
		Checksum:    existing.Checksum,
		PatchNotes:  input.PatchNotes,
		ReleaseDate: input.ReleaseDate,
	}

	if input.Package != nil {
		if err = s.store.Write(input.BuildID, input.Package); err != nil {
			return 0, build.Record{}, err
		}

		rec.Checksum, err = s.integrity.Checksum(input.BuildID)
		if err != nil {
			return 0, build.Record{}, fmt.Errorf("checksum uploaded package: %w", err)
		}
	}

	outcome, err := s.registry.Upsert(ctx, input.BuildID, rec, input.Overwrite)
	if err != nil {
		return 0, build.Record{}, err
	}

	logger.InfoKV(ctx, "Build upserted",
		"build_id", input.BuildID, "outcome", outcome.String(), "version", rec.Version)

	return outcome, rec, nil
}

// DeleteBuild removes a build: the artifact is soft-deleted into the trash
// first, then the registry slot is removed. A build whose artifact is already
// absent is still deletable.
func (s *Service) DeleteBuild(ctx context.Context, id string) (string, error) {
	if _, err := s.registry.Get(ctx, id); err != nil {
		return "", err
	}

	trashPath, err := s.store.SoftDelete(id)
	if err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return "", err
	}

	if err = s.registry.Delete(ctx, id); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Build deleted", "build_id", id, "trash_path", trashPath)

	return trashPath, nil
}

// Authenticate verifies a bearer token and returns the key name.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	return s.gate.Authenticate(ctx, token)
}

// GenerateKey creates a named API key and returns its secret.
func (s *Service) GenerateKey(ctx context.Context, name string) (string, error) {
	secret, err := s.gate.Generate(ctx, name)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "API key generated", "name", name)

	return secret, nil
}

// RevokeKey removes a named API key.
func (s *Service) RevokeKey(ctx context.Context, name string) error {
	if err := s.gate.Revoke(ctx, name); err != nil {
		return err
	}

	logger.InfoKV(ctx, "API key revoked", "name", name)

	return nil
}

// ListKeys returns the API key names.
func (s *Service) ListKeys(ctx context.Context) ([]string, error) {
	return s.gate.List(ctx)
}
