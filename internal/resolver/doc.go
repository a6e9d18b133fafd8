// Package resolver computes the next firmware build in sequence for a device.
//
// The ordering policy is a Strategy with named variants: insertion order
// (canonical), release-date and artifact-modtime. Resolution stops at the
// first successor whose artifact is missing unless gap skipping is enabled.
package resolver
