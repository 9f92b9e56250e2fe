package keyvault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"lockchat/internal/cryptographic/encryption"
	"lockchat/internal/cryptographic/kdf"
	"lockchat/internal/utils/memzero"
)

const (
	// SaltSize is the PBKDF2 salt length stored at the front of a blob.
	SaltSize = 16

	// DEKSize is the data-encryption key length.
	DEKSize = 32

	// minBlobSize is salt + nonce + at least one GCM tag.
	minBlobSize = SaltSize + encryption.NonceSize + encryption.TagSize
)

var (
	// ErrBlobTooShort marks a blob shorter than the fixed header layout.
	ErrBlobTooShort = errors.New("encrypted key blob is too short or malformed")

	// ErrAuthentication marks a failed AEAD tag check: wrong passphrase or a
	// tampered blob.
	ErrAuthentication = errors.New("key blob authentication failed: wrong passphrase or corrupted blob")

	// ErrBadKeySize marks a DEK that is not exactly DEKSize bytes.
	ErrBadKeySize = errors.New("data encryption key must be 32 bytes")
)

// GenerateDEK returns a fresh random 32-byte data-encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("rand.Read dek: %w", err)
	}
	return dek, nil
}

// CreateBlob encrypts dek under a key derived from passphrase and returns the
// persistable record: salt(16) || nonce(12) || ciphertext. Salt and nonce are
// generated fresh; changing the passphrase means regenerating the whole blob.
func CreateBlob(dek []byte, passphrase string) ([]byte, error) {
	if len(dek) != DEKSize {
		return nil, ErrBadKeySize
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("rand.Read salt: %w", err)
	}

	kek := kdf.DeriveKEK(passphrase, salt)
	defer memzero.Zero(kek)

	// encryption.Encrypt returns nonce || ciphertext, which is exactly the
	// blob layout after the salt.
	sealed, err := encryption.Encrypt(kek, dek, nil)
	if err != nil {
		return nil, fmt.Errorf("seal dek: %w", err)
	}

	blob := make([]byte, 0, SaltSize+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, sealed...)
	return blob, nil
}

// OpenBlob decrypts a blob created by CreateBlob. It fails closed: a wrong
// passphrase or any tampering yields ErrAuthentication and no key material.
func OpenBlob(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < minBlobSize {
		return nil, ErrBlobTooShort
	}

	kek := kdf.DeriveKEK(passphrase, blob[:SaltSize])
	defer memzero.Zero(kek)

	dek, err := encryption.Decrypt(kek, blob[SaltSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if len(dek) != DEKSize {
		memzero.Zero(dek)
		return nil, ErrBadKeySize
	}
	return dek, nil
}
