// Package integrity proves package authenticity.
//
// The Service computes SHA-256 checksums through the artifact store, signs
// them with the server's RSA key (PKCS#1v1.5, deterministic) and validates
// device-supplied checksums case-insensitively. Key material is loaded once
// at startup and held explicitly, never as package state.
package integrity
