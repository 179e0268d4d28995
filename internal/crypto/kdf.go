package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 100000
	// KeySize is the derived key length, selecting AES-256.
	KeySize = 32
	// SaltSize is the length of salts made by GenerateSalt.
	SaltSize = 16
)

// ErrEmptyPassword is returned when a key is derived from an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// DeriveKey stretches password into a KeySize key with PBKDF2-HMAC-SHA256.
func DeriveKey(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New), nil
}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
