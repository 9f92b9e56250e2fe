package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the default upper bound on a declared payload length. A peer
// announcing more than this is treated as hostile and disconnected before any
// allocation happens.
const MaxFrameSize uint32 = 1 << 20

// ErrFrameTooLarge marks a length prefix exceeding the configured maximum.
var ErrFrameTooLarge = errors.New("frame length exceeds maximum")

// WriteFrame writes payload prefixed with its length as a 4-byte big-endian
// integer. The framing is payload-agnostic: the same function carries
// plaintext handshake text and encrypted envelopes.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. max bounds the declared
// payload length; zero means MaxFrameSize. A stream that closes mid-frame
// surfaces io.ErrUnexpectedEOF wrapped in the returned error.
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	if max == 0 {
		max = MaxFrameSize
	}

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > max {
		return nil, fmt.Errorf("%w: declared %d, max %d", ErrFrameTooLarge, length, max)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
