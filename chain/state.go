// Package chain simulates the per-chain execution environments the provers
// run against: a keyed account/storage store with canonical trie roots and
// EIP-1186-shaped proof generation, sealed block headers, and the execution
// context used to scope home-chain-only operations.
package chain

import (
	"math/big"
	"sync"

	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/trie"
)

// State is an in-memory account/storage store with canonical Merkle roots.
// Values are kept in plain maps and the tries are rebuilt on demand, so
// zero-valued slots are simply absent, mirroring the protocol convention.
type State struct {
	mu       sync.RWMutex
	accounts map[types.Address]*account
}

type account struct {
	nonce   uint64
	balance *big.Int
	code    []byte
	storage map[types.Hash]types.Hash
}

// NewState creates an empty state.
func NewState() *State {
	return &State{accounts: make(map[types.Address]*account)}
}

func (s *State) getOrCreate(addr types.Address) *account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = &account{balance: new(big.Int), storage: make(map[types.Hash]types.Hash)}
		s.accounts[addr] = acc
	}
	return acc
}

// SetCode installs code at addr, creating the account if needed.
func (s *State) SetCode(addr types.Address, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(addr).code = append([]byte(nil), code...)
}

// CodeHash returns the keccak256 hash of the code at addr.
func (s *State) CodeHash(addr types.Address) types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acc, ok := s.accounts[addr]; ok && len(acc.code) > 0 {
		return crypto.Keccak256Hash(acc.code)
	}
	return types.EmptyCodeHash
}

// SetStorage writes a 32-byte word at (addr, slot). Writing the zero word
// deletes the slot.
func (s *State) SetStorage(addr types.Address, slot, value types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getOrCreate(addr)
	if value.IsZero() {
		delete(acc.storage, slot)
		return
	}
	acc.storage[slot] = value
}

// Storage reads the word at (addr, slot); absent slots read as zero.
func (s *State) Storage(addr types.Address, slot types.Hash) types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acc, ok := s.accounts[addr]; ok {
		return acc.storage[slot]
	}
	return types.Hash{}
}

// Root computes the canonical state trie root over all accounts.
func (s *State) Root() types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateTrie().Hash()
}

// stateTrie rebuilds the account trie; callers hold the lock.
func (s *State) stateTrie() *trie.Trie {
	t := trie.New()
	for addr, acc := range s.accounts {
		t.Update(crypto.Keccak256(addr[:]), trie.EncodeAccount(s.record(acc)))
	}
	return t
}

// record assembles the canonical account record for acc.
func (s *State) record(acc *account) types.Account {
	rec := types.Account{
		Nonce:    acc.nonce,
		Balance:  acc.balance,
		Root:     storageTrie(acc.storage).Hash(),
		CodeHash: types.EmptyCodeHash,
	}
	if len(acc.code) > 0 {
		rec.CodeHash = crypto.Keccak256Hash(acc.code)
	}
	return rec
}

func storageTrie(storage map[types.Hash]types.Hash) *trie.Trie {
	t := trie.New()
	for slot, value := range storage {
		t.Update(trie.StorageKey(slot), trie.EncodeStorageWord(value))
	}
	return t
}

// Proof is an EIP-1186-shaped storage proof: the account proof against the
// state root and the slot proof against the account's storage root.
type Proof struct {
	StateRoot    types.Hash
	Address      types.Address
	Slot         types.Hash
	Value        types.Hash
	AccountProof [][]byte
	StorageProof [][]byte
}

// ProveStorage generates a proof of the word at (addr, slot) against the
// current state root. Absent accounts and slots yield absence proofs with a
// zero value.
func (s *State) ProveStorage(addr types.Address, slot types.Hash) (*Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stateTrie := s.stateTrie()
	proof := &Proof{
		StateRoot: stateTrie.Hash(),
		Address:   addr,
		Slot:      slot,
	}

	addrKey := crypto.Keccak256(addr[:])
	acc, ok := s.accounts[addr]
	if !ok {
		ap, err := stateTrie.ProveAbsence(addrKey)
		if err != nil {
			return nil, err
		}
		proof.AccountProof = ap
		return proof, nil
	}

	ap, err := stateTrie.Prove(addrKey)
	if err != nil {
		return nil, err
	}
	proof.AccountProof = ap

	st := storageTrie(acc.storage)
	slotKey := trie.StorageKey(slot)
	if value, exists := acc.storage[slot]; exists {
		sp, err := st.Prove(slotKey)
		if err != nil {
			return nil, err
		}
		proof.StorageProof = sp
		proof.Value = value
		return proof, nil
	}
	sp, err := st.ProveAbsence(slotKey)
	if err != nil {
		return nil, err
	}
	proof.StorageProof = sp
	return proof, nil
}

// MappingSlot derives the storage slot of mapping[key] for a mapping rooted
// at base: keccak256(key ++ base), the canonical mapping layout.
func MappingSlot(key, base types.Hash) types.Hash {
	return crypto.Keccak256Hash(key[:], base[:])
}

// MappingSlotUint64 derives the storage slot of mapping[k] for an integer
// key, left-padded to a word.
func MappingSlotUint64(k uint64, base types.Hash) types.Hash {
	return MappingSlot(types.Uint64Word(k), base)
}
