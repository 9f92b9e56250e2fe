package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"lockchat/internal/cryptographic/encryption"
	"lockchat/internal/wire"
)

var (
	// ErrAuthentication marks a failed AEAD tag check on an incoming
	// envelope: wrong key, tampered ciphertext, or a forged username.
	ErrAuthentication = errors.New("envelope authentication failed")

	// ErrMalformed marks an envelope that cannot be parsed at all.
	ErrMalformed = errors.New("malformed envelope")
)

type (
	// Envelope is the wire representation of one encrypted chat message.
	// Byte fields are hex-encoded so a captured frame can be audited by eye.
	// The username is bound into the tag as associated data, so it cannot be
	// swapped onto someone else's ciphertext.
	Envelope struct {
		Username   string `json:"username"`
		Nonce      string `json:"nonce"`
		Ciphertext string `json:"ciphertext"`
		Tag        string `json:"tag"`
	}
)

// Seal encrypts plaintext under dek with a fresh random 12-byte nonce and
// returns the structured record ready for serialization.
func Seal(dek []byte, username, plaintext string) (*Envelope, error) {
	nonce := make([]byte, encryption.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand.Read nonce: %w", err)
	}

	ciphertext, tag, err := encryption.SealDetached(dek, nonce, []byte(plaintext), []byte(username))
	if err != nil {
		return nil, fmt.Errorf("seal envelope: %w", err)
	}

	return &Envelope{
		Username:   username,
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
		Tag:        hex.EncodeToString(tag),
	}, nil
}

// Open decrypts an envelope under dek. It never returns partial plaintext: a
// failed tag check yields ErrAuthentication, unparsable fields ErrMalformed.
func Open(dek []byte, env *Envelope) (string, error) {
	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil || len(nonce) != encryption.NonceSize {
		return "", fmt.Errorf("%w: bad nonce", ErrMalformed)
	}
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrMalformed)
	}
	tag, err := hex.DecodeString(env.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag", ErrMalformed)
	}

	plain, err := encryption.OpenDetached(dek, nonce, ciphertext, tag, []byte(env.Username))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return string(plain), nil
}

// Marshal serializes the envelope to its JSON wire form.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an envelope from its JSON wire form.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &env, nil
}

// SendSealed seals plaintext and writes the envelope as one frame.
func SendSealed(w io.Writer, dek []byte, username, plaintext string) error {
	env, err := Seal(dek, username, plaintext)
	if err != nil {
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return wire.WriteFrame(w, data)
}

// ReadSealed reads one frame and opens it, returning the sender's username
// and the decrypted plaintext.
func ReadSealed(r io.Reader, dek []byte, max uint32) (string, string, error) {
	payload, err := wire.ReadFrame(r, max)
	if err != nil {
		return "", "", err
	}
	env, err := Unmarshal(payload)
	if err != nil {
		return "", "", err
	}
	plain, err := Open(dek, env)
	if err != nil {
		return "", "", err
	}
	return env.Username, plain, nil
}
