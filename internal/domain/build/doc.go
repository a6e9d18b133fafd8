// Package build contains core domain types for firmware build metadata.
//
// It defines Record (the metadata of one build) and Document (an
// insertion-ordered registry of records whose key order is the canonical
// update sequence). Document round-trips through JSON without losing order.
package build
