// Package auth implements the bearer-credential gate in front of the API.
//
// The Gate authenticates tokens against the persisted key set with
// constant-time comparison and a uniform failure mode, and manages key
// generation and revocation.
package auth
