package trie

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/rlp"
)

// VerifyStorageValue verifies an account proof and a storage proof against
// a state root and returns the 32-byte storage word at (addr, slot).
//
// Both walks follow the keccak-hashed key, per the canonical state layout.
// A proven-absent account or slot yields the zero word; only structurally
// invalid proofs produce errors.
func VerifyStorageValue(stateRoot types.Hash, addr types.Address, slot types.Hash, accountProof, storageProof [][]byte) (types.Hash, error) {
	accLeaf, err := VerifyProof(stateRoot, crypto.Keccak256(addr[:]), accountProof)
	if err != nil {
		return types.Hash{}, fmt.Errorf("account proof: %w", err)
	}
	if accLeaf == nil {
		// Account provably absent: it has no storage.
		return types.Hash{}, nil
	}
	acc, err := DecodeAccount(accLeaf)
	if err != nil {
		return types.Hash{}, err
	}

	slotLeaf, err := VerifyProof(acc.Root, StorageKey(slot), storageProof)
	if err != nil {
		return types.Hash{}, fmt.Errorf("storage proof: %w", err)
	}
	if slotLeaf == nil {
		return types.Hash{}, nil
	}
	return DecodeStorageWord(slotLeaf)
}

// DecodeStorageWord decodes a storage leaf (an RLP-encoded scalar with no
// leading zeros) into a fixed 32-byte big-endian word.
func DecodeStorageWord(leaf []byte) (types.Hash, error) {
	s := rlp.NewStream(leaf)
	payload, err := s.Bytes()
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: storage leaf: %v", ErrProofInvalid, err)
	}
	if len(payload) > 32 || (len(payload) > 1 && payload[0] == 0) {
		return types.Hash{}, fmt.Errorf("%w: storage leaf not a canonical scalar", ErrProofInvalid)
	}
	word := new(uint256.Int).SetBytes(payload)
	return types.Hash(word.Bytes32()), nil
}

// EncodeStorageWord encodes a 32-byte storage word as the canonical storage
// leaf: the RLP string of its big-endian bytes with leading zeros trimmed.
func EncodeStorageWord(value types.Hash) []byte {
	word := new(uint256.Int).SetBytes32(value[:])
	return rlp.EncodeString(word.Bytes())
}

// StorageKey returns the trie path key for a storage slot: keccak256 of the
// 32-byte slot.
func StorageKey(slot types.Hash) []byte {
	return crypto.Keccak256(slot[:])
}
