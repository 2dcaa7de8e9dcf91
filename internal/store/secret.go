package store

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

// auditKeyDomain separates the audit chain key from any other key ever
// derived from the device secret.
const auditKeyDomain = "cornerknock-audit-v1"

const secretSize = 32

// LoadOrCreateSecret returns the device secret at path, generating and
// persisting a fresh one (0600) on first use.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != secretSize {
			return nil, fmt.Errorf("device secret %s has length %d, want %d", path, len(data), secretSize)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate device secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create secret directory: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("write device secret: %w", err)
	}
	return secret, nil
}

// DeriveAuditKey derives the audit chain HMAC key from the device secret
// via HKDF-SHA256 under the audit domain.
func DeriveAuditKey(secret []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, []byte(auditKeyDomain), []byte("chain-hmac"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF expand: %w", err)
	}
	return key, nil
}
