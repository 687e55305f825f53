package trie

import (
	"errors"
	"fmt"

	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/rlp"
)

// ErrAccountEncoding is returned when an account leaf does not decode as
// the canonical 4-field record.
var ErrAccountEncoding = errors.New("trie: invalid account encoding")

// EncodeAccount RLP-encodes an account record as the canonical 4-element
// list [nonce, balance, storageRoot, codeHash].
func EncodeAccount(acc types.Account) []byte {
	var p []byte
	p = rlp.AppendUint64(p, acc.Nonce)
	p = rlp.AppendBigInt(p, acc.Balance)
	p = rlp.AppendString(p, acc.Root[:])
	p = rlp.AppendString(p, acc.CodeHash[:])
	return rlp.WrapList(p)
}

// DecodeAccount decodes a canonical account record. The storage-root and
// code-hash fields must be exactly 32 bytes.
func DecodeAccount(data []byte) (types.Account, error) {
	var acc types.Account
	s := rlp.NewStream(data)
	if _, err := s.List(); err != nil {
		return acc, fmt.Errorf("%w: %v", ErrAccountEncoding, err)
	}
	var err error
	if acc.Nonce, err = s.Uint64(); err != nil {
		return acc, fmt.Errorf("%w: nonce: %v", ErrAccountEncoding, err)
	}
	if acc.Balance, err = s.BigInt(); err != nil {
		return acc, fmt.Errorf("%w: balance: %v", ErrAccountEncoding, err)
	}
	root, err := s.Bytes()
	if err != nil || len(root) != types.HashLength {
		return acc, fmt.Errorf("%w: storage root", ErrAccountEncoding)
	}
	copy(acc.Root[:], root)
	codeHash, err := s.Bytes()
	if err != nil || len(codeHash) != types.HashLength {
		return acc, fmt.Errorf("%w: code hash", ErrAccountEncoding)
	}
	copy(acc.CodeHash[:], codeHash)
	if err := s.ListEnd(); err != nil {
		return acc, fmt.Errorf("%w: trailing fields", ErrAccountEncoding)
	}
	return acc, nil
}
