package keyvault

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteBlobFile encrypts dek under passphrase and writes the blob to path,
// creating parent directories as needed. The file is owner-readable only.
func WriteBlobFile(path string, dek []byte, passphrase string) error {
	blob, err := CreateBlob(dek, passphrase)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("write key blob: %w", err)
	}
	return nil
}

// LoadDEK reads the blob at path and decrypts it with passphrase. The caller
// owns the returned key and should zero it on shutdown.
func LoadDEK(path, passphrase string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key blob: %w", err)
	}
	return OpenBlob(blob, passphrase)
}
