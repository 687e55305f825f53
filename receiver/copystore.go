package receiver

import (
	"errors"
	"sync"

	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/prover"
)

// ErrCopyVersion is returned when a candidate copy's version is zero or not
// strictly greater than the copy already registered for the route id.
var ErrCopyVersion = errors.New("receiver: copy version must be non-zero and strictly increasing")

// CopyStore holds the locally registered prover copies keyed by route id.
// Entries are only ever superseded by a strictly higher version and are
// never deleted.
type CopyStore struct {
	mu      sync.RWMutex
	entries map[types.Hash]prover.StateProver
}

// NewCopyStore creates an empty copy store.
func NewCopyStore() *CopyStore {
	return &CopyStore{entries: make(map[types.Hash]prover.StateProver)}
}

// Get returns the registered copy for id, or (nil, false) when absent.
func (s *CopyStore) Get(id types.Hash) (prover.StateProver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[id]
	return p, ok
}

// Put registers candidate under id, enforcing the strict version order.
func (s *CopyStore) Put(id types.Hash, candidate prover.StateProver) error {
	v := candidate.Version()
	if v == 0 {
		return ErrCopyVersion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok && existing.Version() >= v {
		return ErrCopyVersion
	}
	s.entries[id] = candidate
	return nil
}
