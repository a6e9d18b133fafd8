// Package config defines settings used by the OTA server binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the listen address, storage locations (packages, trash,
// registry and key documents), the signing key path and the sequencing policy.
package config
