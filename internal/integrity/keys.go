package integrity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKeyBits is the RSA key size generated by the admin bootstrap.
const DefaultKeyBits = 2048

var (
	// errNoPEMBlock is returned when the key file contains no PEM data.
	errNoPEMBlock = errors.New("no PEM block found in key file")
	// errNotRSAKey is returned when the PEM block holds a non-RSA key.
	errNotRSAKey = errors.New("key file does not contain an RSA private key")
)

// LoadPrivateKey reads a PEM-encoded RSA private key (PKCS#1 or PKCS#8) from
// the provided path. Callers are expected to fail fast on error: the server
// must not start without its signing key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, fmt.Errorf("%w: %s", errNoPEMBlock, path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotRSAKey, path)
	}

	return key, nil
}

// GeneratePrivateKey creates a fresh RSA signing key.
func GeneratePrivateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	return key, nil
}

// SavePrivateKey writes the key as PKCS#1 PEM with restricted permissions,
// creating the parent directory if needed.
func SavePrivateKey(path string, key *rsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	return nil
}

// PublicPEM returns the verification half of the signing key as PEM, for
// distribution to devices.
func (s *Service) PublicPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("encode public key: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})

	return string(data), nil
}
