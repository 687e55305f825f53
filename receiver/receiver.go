// Package receiver implements the route verifier: it walks an ordered list
// of prover pointer references hop by hop, deriving each chain's state
// commitment from the previous one, and authenticates a single storage read
// on the origin chain. It also manages the locally registered prover copies
// that hops beyond the first depend on.
package receiver

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/openintentsframework/stateproofs/broadcast"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/logger"
	"github.com/openintentsframework/stateproofs/pointer"
	"github.com/openintentsframework/stateproofs/prover"
)

var (
	// ErrRouteShape is returned when the route is empty or its length does
	// not match the number of hop inputs.
	ErrRouteShape = errors.New("receiver: route and hop inputs must be non-empty and equal length")

	// ErrUnknownPointer is returned when hop 0 names a pointer the local
	// chain has no record of.
	ErrUnknownPointer = errors.New("receiver: unknown local pointer")

	// ErrCopyNotFound is returned when no prover copy is registered for a
	// non-first hop's accumulated route id.
	ErrCopyNotFound = errors.New("receiver: no prover copy registered for route")

	// ErrNotBroadcast is returned when the proven slot holds the zero word:
	// the message was never broadcast.
	ErrNotBroadcast = errors.New("receiver: message never broadcast")

	// ErrSlotMismatch is returned when the proof proved a slot other than
	// the one derived from (message, publisher).
	ErrSlotMismatch = errors.New("receiver: proof proved the wrong storage slot")

	// ErrNotCodeHashSlot is returned when a copy registration's proof read
	// something other than the protocol's pinned-code-hash slot.
	ErrNotCodeHashSlot = errors.New("receiver: proof must read the pointer code hash slot")

	// ErrCodeHashMismatch is returned when the candidate copy's code does
	// not hash to the value the remote pointer pins.
	ErrCodeHashMismatch = errors.New("receiver: candidate code hash does not match pinned value")

	// ErrTimestampRange is returned when a proven timestamp word exceeds
	// the uint64 range.
	ErrTimestampRange = errors.New("receiver: timestamp out of range")
)

// PointerResolver resolves a local pointer account to its pointer. Only
// hop 0 of a route is resolved this way; the verifying chain trusts its own
// record of its pointers.
type PointerResolver interface {
	Pointer(addr types.Address) (*pointer.Pointer, bool)
}

// PointerSet is a map-backed PointerResolver.
type PointerSet map[types.Address]*pointer.Pointer

func (s PointerSet) Pointer(addr types.Address) (*pointer.Pointer, bool) {
	p, ok := s[addr]
	return p, ok
}

// Receiver verifies route walks on one chain. Verification never writes
// state; only copy registration mutates the copy store.
type Receiver struct {
	ctx      chain.Context
	resolver PointerResolver
	copies   *CopyStore
	log      zerolog.Logger
}

// New creates a receiver executing in ctx, resolving hop-0 pointers through
// resolver and reading registered copies from copies.
func New(ctx chain.Context, resolver PointerResolver, copies *CopyStore) *Receiver {
	return &Receiver{ctx: ctx, resolver: resolver, copies: copies, log: logger.Logger()}
}

// Copies returns the receiver's copy store.
func (r *Receiver) Copies() *CopyStore { return r.copies }

// foldAddress extends a route accumulator by one address, left-padded to a
// word. Hop addresses and the final proven account fold identically, so a
// registration's route id is exactly the key a later hop looks up.
func foldAddress(acc types.Hash, addr types.Address) types.Hash {
	return crypto.Keccak256Hash(acc[:], addr.Word().Bytes())
}

// readRemoteSlot is the shared walk. Hop 0 resolves the local pointer and
// performs the trusted local read; every later hop requires a registered
// copy and derives its commitment purely by proof. The last hop's prover
// verifies the terminal storage proof, and the proven account is folded
// into the accumulator as the final component of the route id.
func (r *Receiver) readRemoteSlot(route []types.Address, hopInputs [][]byte, finalProof []byte) (types.Hash, prover.SlotProof, error) {
	if len(route) == 0 || len(route) != len(hopInputs) {
		return types.Hash{}, prover.SlotProof{}, ErrRouteShape
	}

	var (
		acc        types.Hash
		commitment types.Hash
		last       prover.StateProver
	)
	for i, addr := range route {
		acc = foldAddress(acc, addr)
		if i == 0 {
			ptr, ok := r.resolver.Pointer(addr)
			if !ok {
				return types.Hash{}, prover.SlotProof{}, fmt.Errorf("%w: %s", ErrUnknownPointer, addr)
			}
			impl, err := ptr.Implementation()
			if err != nil {
				return types.Hash{}, prover.SlotProof{}, err
			}
			commitment, err = impl.LocalStateCommitment(r.ctx, hopInputs[0])
			if err != nil {
				return types.Hash{}, prover.SlotProof{}, fmt.Errorf("hop 0: %w", err)
			}
			last = impl
			continue
		}
		cp, ok := r.copies.Get(acc)
		if !ok {
			return types.Hash{}, prover.SlotProof{}, fmt.Errorf("hop %d: %w", i, ErrCopyNotFound)
		}
		next, err := cp.VerifyRemoteStateCommitment(r.ctx, commitment, hopInputs[i])
		if err != nil {
			return types.Hash{}, prover.SlotProof{}, fmt.Errorf("hop %d: %w", i, err)
		}
		commitment = next
		last = cp
	}

	sp, err := last.VerifyStorageSlot(commitment, finalProof)
	if err != nil {
		return types.Hash{}, prover.SlotProof{}, err
	}
	return foldAddress(acc, sp.Account), sp, nil
}

// VerifyMessage authenticates that publisher broadcast message on the
// origin chain at the end of route. It returns the route id identifying the
// proven broadcaster and the origination timestamp.
func (r *Receiver) VerifyMessage(route []types.Address, hopInputs [][]byte, finalProof []byte, message types.Hash, publisher types.Address) (types.Hash, uint64, error) {
	id, sp, err := r.readRemoteSlot(route, hopInputs, finalProof)
	if err != nil {
		return types.Hash{}, 0, err
	}
	if sp.Value.IsZero() {
		return types.Hash{}, 0, ErrNotBroadcast
	}
	if sp.Slot != broadcast.MessageSlot(message, publisher) {
		return types.Hash{}, 0, ErrSlotMismatch
	}
	ts := new(uint256.Int).SetBytes(sp.Value[:])
	if !ts.IsUint64() {
		return types.Hash{}, 0, ErrTimestampRange
	}
	return id, ts.Uint64(), nil
}

// RegisterProverCopy registers candidate as the local copy of the prover
// the remote pointer at the end of route currently pins. The walk must
// prove a read of exactly the protocol code hash slot, and candidate's
// code must hash to the proven value.
func (r *Receiver) RegisterProverCopy(route []types.Address, hopInputs [][]byte, finalProof []byte, candidate prover.StateProver) (types.Hash, error) {
	id, sp, err := r.readRemoteSlot(route, hopInputs, finalProof)
	if err != nil {
		return types.Hash{}, err
	}
	if sp.Slot != pointer.CodeHashSlot {
		return types.Hash{}, ErrNotCodeHashSlot
	}
	if crypto.Keccak256Hash(candidate.Code()) != sp.Value {
		return types.Hash{}, ErrCodeHashMismatch
	}
	if err := r.copies.Put(id, candidate); err != nil {
		return types.Hash{}, err
	}
	r.log.Info().
		Str("routeId", id.Hex()).
		Str("pointer", sp.Account.Hex()).
		Uint64("version", candidate.Version()).
		Msg("prover copy registered")
	return id, nil
}

// Copy returns the registered copy for a route id, or (nil, false) when
// none is registered. Lookup never fails.
func (r *Receiver) Copy(id types.Hash) (prover.StateProver, bool) {
	return r.copies.Get(id)
}
