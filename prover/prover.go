// Package prover defines the state prover contract and its chain-specific
// adapters. A state prover converts a commitment to its home chain's state
// into a commitment to its target chain's state, either by privileged local
// read (home chain only) or by pure proof verification (anywhere else), and
// verifies storage-slot proofs against the target chain's authenticated
// state scheme.
package prover

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/rlp"
	"github.com/openintentsframework/stateproofs/trie"
)

var (
	// ErrNotHomeChain is returned when a local read executes off the
	// prover's home chain.
	ErrNotHomeChain = errors.New("prover: not executing on the home chain")

	// ErrOnHomeChain is returned when proof verification executes on the
	// home chain, where the local read must be used instead.
	ErrOnHomeChain = errors.New("prover: operation not available on the home chain")

	// ErrNoHomeBinding is returned when a local read is attempted on a
	// detached prover copy that has no home chain handle.
	ErrNoHomeBinding = errors.New("prover: prover has no home chain binding")

	// ErrUnknownCommitment is returned when the requested commitment is
	// unknown, evicted or not yet finalized on the home chain.
	ErrUnknownCommitment = errors.New("prover: unknown or unfinalized commitment")

	// ErrHeaderMismatch is returned when a supplied header does not hash to
	// the expected commitment. For latest-only sources this usually means
	// the proof went stale and must be regenerated.
	ErrHeaderMismatch = errors.New("prover: header hash does not match commitment")

	// ErrInputEncoding is returned when a prover input fails to decode.
	ErrInputEncoding = errors.New("prover: malformed input encoding")
)

// SlotProof is an authenticated (account, slot, value) triple on the target
// chain.
type SlotProof struct {
	Account types.Address
	Slot    types.Hash
	Value   types.Hash
}

// StateProver is the contract every chain adapter satisfies.
//
// LocalStateCommitment performs a privileged chain-specific read and is
// valid only while executing on the prover's home chain.
// VerifyRemoteStateCommitment derives the target commitment purely from a
// previously established home commitment and a proof, and is valid anywhere
// except the home chain. VerifyStorageSlot verifies a caller-chosen
// account/slot proof against a target commitment and is valid anywhere.
type StateProver interface {
	LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error)
	VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error)
	VerifyStorageSlot(target types.Hash, proof []byte) (SlotProof, error)

	// Version is pure and strictly increasing across upgrades of an
	// adapter's logic.
	Version() uint64

	// HomeChain identifies the chain the local read is scoped to.
	HomeChain() chain.ID

	// Code returns the canonical implementation bytes; keccak256(Code()) is
	// the value a prover pointer pins. Two instances with identical kind,
	// version and configuration return identical code.
	Code() []byte
}

// codeFor assembles canonical implementation bytes from an adapter kind,
// its version and its configuration parameters.
func codeFor(kind string, version uint64, params ...[]byte) []byte {
	var p []byte
	p = rlp.AppendString(p, []byte(kind))
	p = rlp.AppendUint64(p, version)
	for _, param := range params {
		p = rlp.AppendString(p, param)
	}
	return rlp.WrapList(p)
}

// authenticateHeader decodes a header and checks it against the expected
// commitment by hash equality.
func authenticateHeader(commitment types.Hash, headerRLP []byte) (*types.Header, error) {
	h, err := types.DecodeHeaderRLP(headerRLP)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInputEncoding, err)
	}
	if h.Hash() != commitment {
		return nil, ErrHeaderMismatch
	}
	return h, nil
}

// StorageSlotInput is the shared storage-slot proof layout for MPT-based
// target chains: a header authenticated against the target commitment plus
// EIP-1186 account and storage proofs under its state root.
type StorageSlotInput struct {
	HeaderRLP    []byte
	Account      []byte // 20 bytes
	Slot         []byte // 32 bytes
	AccountProof [][]byte
	StorageProof [][]byte
}

// mptTarget provides VerifyStorageSlot for adapters whose target chain uses
// the canonical Merkle-Patricia state layout.
type mptTarget struct{}

func (mptTarget) VerifyStorageSlot(target types.Hash, proof []byte) (SlotProof, error) {
	var in StorageSlotInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return SlotProof{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	if len(in.Account) != types.AddressLength || len(in.Slot) != types.HashLength {
		return SlotProof{}, fmt.Errorf("%w: account/slot length", ErrInputEncoding)
	}
	account := types.BytesToAddress(in.Account)
	slot := types.BytesToHash(in.Slot)

	header, err := authenticateHeader(target, in.HeaderRLP)
	if err != nil {
		return SlotProof{}, err
	}
	value, err := trie.VerifyStorageValue(header.Root, account, slot, in.AccountProof, in.StorageProof)
	if err != nil {
		return SlotProof{}, err
	}
	return SlotProof{Account: account, Slot: slot, Value: value}, nil
}

// EncodeStorageSlotInput builds the shared storage-slot proof encoding from
// a sealed header and a chain state proof.
func EncodeStorageSlotInput(headerRLP []byte, p *chain.Proof) ([]byte, error) {
	return cbor.Marshal(StorageSlotInput{
		HeaderRLP:    headerRLP,
		Account:      p.Address.Bytes(),
		Slot:         p.Slot.Bytes(),
		AccountProof: p.AccountProof,
		StorageProof: p.StorageProof,
	})
}
