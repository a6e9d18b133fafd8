package resolver

import (
	"context"
	"fmt"

	"github.com/oshokin/ota-server/internal/domain/build"
	"github.com/oshokin/ota-server/internal/repository/registry"
)

// Status is the outcome of a next-build resolution.
type Status int

const (
	// StatusNotFound means the device's current build is unknown to the
	// registry. Callers must not conflate this with StatusUpToDate.
	StatusNotFound Status = iota
	// StatusUpToDate means no newer build is available to the device.
	StatusUpToDate
	// StatusNext means a newer build with a published artifact exists.
	StatusNext
)

// Resolution describes the next build for a device, if any.
type Resolution struct {
	// Status is the resolution outcome.
	Status Status
	// BuildID identifies the next build when Status is StatusNext.
	BuildID string
	// Record is the next build's metadata when Status is StatusNext.
	Record build.Record
}

// ArtifactIndex abstracts the artifact existence checks the resolver needs.
type ArtifactIndex interface {
	Exists(id string) bool
}

// Resolver computes the next build in sequence for a device. Resolution is a
// pure function of the current build, a registry snapshot and artifact
// existence: no wall clock, fully deterministic for a fixed state.
type Resolver struct {
	// registry provides build metadata snapshots.
	registry registry.Repository
	// artifacts answers artifact existence checks.
	artifacts ArtifactIndex
	// strategy orders candidate successors.
	strategy Strategy
	// skipGaps makes resolution search past successors whose artifact is
	// missing. The canonical behavior stops at the first gap.
	skipGaps bool
}

// New creates a resolver over the registry and artifact store with the
// provided ordering strategy.
func New(reg registry.Repository, artifacts ArtifactIndex, strategy Strategy, skipGaps bool) *Resolver {
	return &Resolver{
		registry:  reg,
		artifacts: artifacts,
		strategy:  strategy,
		skipGaps:  skipGaps,
	}
}

// Resolve determines the next build after currentID.
//
// An unknown currentID yields StatusNotFound. Otherwise the strategy produces
// the ordered successor candidates; with gap skipping disabled only the first
// candidate is considered, and a missing artifact means the device is treated
// as up to date rather than pointed at a package that cannot be served.
func (r *Resolver) Resolve(ctx context.Context, currentID string) (Resolution, error) {
	doc, err := r.registry.List(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load registry snapshot: %w", err)
	}

	if _, ok := doc.Get(currentID); !ok {
		return Resolution{Status: StatusNotFound}, nil
	}

	candidates := r.strategy.Successors(doc, currentID)

	for _, id := range candidates {
		if r.artifacts.Exists(id) {
			rec, _ := doc.Get(id)

			return Resolution{
				Status:  StatusNext,
				BuildID: id,
				Record:  rec,
			}, nil
		}

		if !r.skipGaps {
			break
		}
	}

	return Resolution{Status: StatusUpToDate}, nil
}
