// Package update contains domain types shared by the update-check flow:
// check outcomes, signed checksum answers and admin upsert inputs.
package update
