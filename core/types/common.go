// Package types defines the core data structures shared by the proof
// verification packages: fixed-size hashes and addresses, account records
// and the canonical block header.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	HashLength    = 32
	AddressLength = 20
	NonceLength   = 8
)

// Hash represents a 32-byte Keccak256 digest. A state commitment is a Hash:
// an opaque, self-authenticating digest of a chain's state at one instant,
// comparable only by equality.
type Hash [HashLength]byte

// Address represents the 20-byte address of a contract or account.
type Address [AddressLength]byte

// BlockNonce is the 8-byte block nonce (legacy PoW, always zero post-merge).
type BlockNonce [NonceLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string to Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return fmt.Sprintf("0x%x", h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// BytesToAddress converts bytes to Address, left-padding if shorter than 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string to Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the hex string representation of the address.
func (a Address) Hex() string { return fmt.Sprintf("0x%x", a[:]) }

// SetBytes sets the address from a byte slice.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// IsZero returns whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// Word returns the address left-padded to a 32-byte word, the form in which
// addresses enter hash preimages (slot derivations, route accumulators).
func (a Address) Word() Hash {
	return BytesToHash(a[:])
}

// Uint64Word returns u as a big-endian 32-byte word.
func Uint64Word(u uint64) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[HashLength-8:], u)
	return h
}

// Uint64 interprets the word as a big-endian unsigned integer, returning
// false when the value exceeds the uint64 range.
func (h Hash) Uint64() (uint64, bool) {
	for _, b := range h[:HashLength-8] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(h[HashLength-8:]), true
}

// Account represents an account record in the state trie:
// [nonce, balance, storageRoot, codeHash].
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	Root     Hash // storage trie root (EmptyRootHash for no storage)
	CodeHash Hash // keccak256 of code (EmptyCodeHash for codeless accounts)
}

// NewAccount creates an account with zero balance and empty storage.
func NewAccount() Account {
	return Account{
		Balance:  new(big.Int),
		CodeHash: EmptyCodeHash,
		Root:     EmptyRootHash,
	}
}

var (
	// EmptyRootHash is the root hash of an empty trie.
	EmptyRootHash = HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

	// EmptyCodeHash is the keccak256 hash of empty code.
	EmptyCodeHash = HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

	// EmptyUncleHash is the keccak256 hash of the RLP of an empty list.
	EmptyUncleHash = HexToHash("1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")
)

// fromHex decodes a hex string, stripping an optional "0x" prefix.
func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
