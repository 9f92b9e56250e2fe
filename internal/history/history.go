// Package history keeps recently relayed chat frames for replay to late
// joiners. Entries are stored exactly as they travel on the wire, as sealed
// envelopes, so no store implementation ever sees plaintext.
package history

import "context"

// Store is the replay buffer behind the server. Append and Recent are safe
// for concurrent use.
type Store interface {
	// Append records one sealed envelope, evicting the oldest entries beyond
	// the store's capacity.
	Append(ctx context.Context, sealed []byte) error
	// Recent returns the retained envelopes, oldest first.
	Recent(ctx context.Context) ([][]byte, error)
}
