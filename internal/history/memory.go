package history

import (
	"context"
	"sync"
)

type (
	// Ring is the default in-process Store: a mutex-guarded bounded slice.
	Ring struct {
		mu      sync.Mutex
		max     int
		entries [][]byte
	}
)

// NewRing returns a Store retaining the last max envelopes.
func NewRing(max int) *Ring {
	return &Ring{max: max}
}

func (r *Ring) Append(_ context.Context, sealed []byte) error {
	cpy := make([]byte, len(sealed))
	copy(cpy, sealed)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, cpy)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
	return nil
}

func (r *Ring) Recent(_ context.Context) ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.entries))
	for i, e := range r.entries {
		cpy := make([]byte, len(e))
		copy(cpy, e)
		out[i] = cpy
	}
	return out, nil
}
