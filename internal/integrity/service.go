package integrity

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ChecksumSource abstracts the artifact store operations the service needs.
type ChecksumSource interface {
	Checksum(id string) (string, error)
}

// Validation is the outcome of a checksum validation call. A mismatch is a
// successful validation with IsValid false, not an error.
type Validation struct {
	// IsValid reports whether the provided checksum matched the server's.
	IsValid bool
	// Message is a human-readable explanation of the outcome.
	Message string
}

// Service computes, signs and validates package checksums. It holds the RSA
// signing key loaded once at startup and is safe for concurrent use.
type Service struct {
	// key is the server's RSA signing key.
	key *rsa.PrivateKey
	// source provides artifact checksums.
	source ChecksumSource
}

// NewService wires the signing key and the artifact store together.
func NewService(key *rsa.PrivateKey, source ChecksumSource) *Service {
	return &Service{
		key:    key,
		source: source,
	}
}

// Checksum returns the artifact's hex SHA-256 digest, recomputed from storage.
func (s *Service) Checksum(id string) (string, error) {
	return s.source.Checksum(id)
}

// Sign produces a hex-encoded RSA PKCS#1v1.5 signature over SHA-256 of the
// checksum's ASCII bytes. PKCS#1v1.5 padding is deterministic: the same
// checksum and key always yield the same signature, so clients may cache it
// for offline verification.
func (s *Service) Sign(checksum string) (string, error) {
	digest := sha256.Sum256([]byte(checksum))

	signature, err := rsa.SignPKCS1v15(nil, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign checksum: %w", err)
	}

	return hex.EncodeToString(signature), nil
}

// Validate compares the provided checksum against the stored one, recomputing
// from the artifact when no cached value is available. Hex comparison is
// case-insensitive.
func (s *Service) Validate(id, stored, provided string) (Validation, error) {
	server := stored
	if server == "" {
		var err error

		server, err = s.source.Checksum(id)
		if err != nil {
			return Validation{}, err
		}
	}

	if strings.EqualFold(server, provided) {
		return Validation{
			IsValid: true,
			Message: "Checksum is valid",
		}, nil
	}

	return Validation{
		IsValid: false,
		Message: "Checksum does not match the server package",
	}, nil
}
