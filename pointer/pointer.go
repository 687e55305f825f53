// Package pointer implements the versioned prover pointer: a well-known
// account that names the current prover implementation for one route hop
// and pins its code hash in chain state so foreign chains can verify
// locally constructed copies against it.
package pointer

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/logger"
	"github.com/openintentsframework/stateproofs/prover"
)

var (
	// ErrNoImplementation is returned when the pointer has never been set.
	ErrNoImplementation = errors.New("pointer: no implementation set")

	// ErrNotAuthority is returned when the caller is not the pointer's
	// upgrade authority.
	ErrNotAuthority = errors.New("pointer: caller is not the authority")

	// ErrBadVersion is returned when a candidate's version is zero or not
	// strictly greater than the current implementation's.
	ErrBadVersion = errors.New("pointer: version must be non-zero and strictly increasing")
)

// CodeHashSlot is the protocol-wide storage slot every pointer writes its
// pinned code hash to: keccak256("openintents.pointer.codehash") minus one,
// so no known preimage maps to the slot itself.
var CodeHashSlot = codeHashSlot()

func codeHashSlot() types.Hash {
	h := crypto.Keccak256([]byte("openintents.pointer.codehash"))
	for i := len(h) - 1; i >= 0; i-- {
		h[i]--
		if h[i] != 0xff {
			break
		}
	}
	return types.BytesToHash(h)
}

// Pointer is a versioned indirection to a prover implementation. Upgrades
// are restricted to the authority and must carry a strictly increasing
// non-zero version; each upgrade pins keccak256 of the implementation's
// code into the pointer account's CodeHashSlot.
type Pointer struct {
	addr      types.Address
	authority types.Address
	state     *chain.State
	log       zerolog.Logger

	mu      sync.RWMutex
	impl    prover.StateProver
	version uint64
}

// New creates an unset pointer at addr, upgradeable only by authority.
func New(addr, authority types.Address, state *chain.State) *Pointer {
	return &Pointer{addr: addr, authority: authority, state: state, log: logger.Logger()}
}

// Address returns the pointer's account address.
func (p *Pointer) Address() types.Address { return p.addr }

// SetImplementation swaps in a new prover implementation. The candidate's
// version must be non-zero and strictly greater than the current one; the
// implementation, its version and the pinned code hash update together.
func (p *Pointer) SetImplementation(caller types.Address, candidate prover.StateProver) error {
	if caller != p.authority {
		return ErrNotAuthority
	}
	v := candidate.Version()
	if v == 0 {
		return ErrBadVersion
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v <= p.version {
		return ErrBadVersion
	}

	pinned := crypto.Keccak256Hash(candidate.Code())
	prev := p.version
	p.impl = candidate
	p.version = v
	p.state.SetStorage(p.addr, CodeHashSlot, pinned)

	p.log.Info().
		Str("pointer", p.addr.Hex()).
		Uint64("prevVersion", prev).
		Uint64("version", v).
		Str("codeHash", pinned.Hex()).
		Msg("pointer implementation set")
	return nil
}

// Implementation returns the current prover implementation.
func (p *Pointer) Implementation() (prover.StateProver, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.impl == nil {
		return nil, ErrNoImplementation
	}
	return p.impl, nil
}

// Version returns the current implementation's version, zero when unset.
func (p *Pointer) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// PinnedCodeHash returns the code hash pinned by the last upgrade.
func (p *Pointer) PinnedCodeHash() (types.Hash, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.impl == nil {
		return types.Hash{}, ErrNoImplementation
	}
	return p.state.Storage(p.addr, CodeHashSlot), nil
}
