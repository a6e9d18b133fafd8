// Package artifact implements file-backed storage for update packages.
//
// Packages are published atomically under standardized ota-<build_id>.zip
// names, checksummed with bounded memory, and soft-deleted by renaming into a
// trash directory with a timestamp-suffixed name.
package artifact
