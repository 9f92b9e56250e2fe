package kdf

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor. Changing it invalidates every
	// blob created under the old value.
	Iterations = 100_000

	// KeyLen is the derived key length in bytes (AES-256).
	KeyLen = 32
)

// DeriveKEK derives the key-encryption key from a passphrase and salt using
// PBKDF2-HMAC-SHA256. Deterministic: the same inputs always yield the same key.
func DeriveKEK(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, Iterations, KeyLen, sha256.New)
}
