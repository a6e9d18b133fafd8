package update

import "io"

// CheckStatus is the outcome of a device update check.
type CheckStatus int

const (
	// StatusUnknownBuild means the device's current build is unknown to the
	// registry. Callers must not conflate this with StatusUpToDate.
	StatusUnknownBuild CheckStatus = iota
	// StatusUpToDate means no newer build is available.
	StatusUpToDate
	// StatusAvailable means a newer build is ready for download.
	StatusAvailable
	// StatusPackageMissing means the next build is known but its package is
	// not present in storage.
	StatusPackageMissing
)

// Decision is the full answer to a device's update check.
type Decision struct {
	// Status is the check outcome.
	Status CheckStatus
	// BuildID identifies the next build when an update is available.
	BuildID string
	// Version is the next build's version string.
	Version string
	// PackageURL is the download path for the next build's package.
	PackageURL string
	// PatchNotes describes the next build.
	PatchNotes string
	// Checksum is the package's hex SHA-256 digest.
	Checksum string
	// Signature is the hex RSA signature over Checksum.
	Signature string
}

// ChecksumInfo is the signed checksum of a named package.
type ChecksumInfo struct {
	// Filename is the package file that was hashed.
	Filename string
	// Checksum is the hex SHA-256 digest.
	Checksum string
	// Signature is the hex RSA signature over Checksum.
	Signature string
}

// UpsertInput carries an admin add-or-overwrite request.
type UpsertInput struct {
	// BuildID is the build being created or replaced.
	BuildID string
	// Version is the human-readable version string.
	Version string
	// PatchNotes describes the build.
	PatchNotes string
	// ReleaseDate is an optional YYYY-MM-DD date for date-based sequencing.
	ReleaseDate string
	// Overwrite allows replacing an existing build in place.
	Overwrite bool
	// Package is the optional package content to publish.
	Package io.Reader
}
