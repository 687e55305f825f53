package types

import (
	"math/big"
	"sync/atomic"
)

// BloomLength is the byte length of a header log bloom.
const BloomLength = 256

// Bloom represents a 2048-bit log bloom filter.
type Bloom [BloomLength]byte

// Header represents a canonical execution-layer block header. Its keccak256
// hash over the RLP encoding is the block hash, the usual form of a state
// commitment; the Root field carries the state root that storage proofs are
// verified against.
type Header struct {
	ParentHash  Hash
	UncleHash   Hash
	Coinbase    Address
	Root        Hash
	TxHash      Hash
	ReceiptHash Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   Hash
	Nonce       BlockNonce

	// EIP-1559
	BaseFee *big.Int

	// EIP-4895: withdrawals
	WithdrawalsHash *Hash

	// EIP-4844: blob transactions
	BlobGasUsed   *uint64
	ExcessBlobGas *uint64

	// EIP-4788: beacon block root
	ParentBeaconRoot *Hash

	// EIP-7685: execution layer requests
	RequestsHash *Hash

	// Cached hash (not serialized).
	hash atomic.Pointer[Hash]
}

// Hash returns the keccak256 hash of the RLP-encoded header.
func (h *Header) Hash() Hash {
	if cached := h.hash.Load(); cached != nil {
		return *cached
	}
	hash := computeHeaderHash(h)
	h.hash.Store(&hash)
	return hash
}
