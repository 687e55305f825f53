package chain

import (
	"math/big"
	"sync"

	"github.com/openintentsframework/stateproofs/core/types"
)

// ID identifies a chain. Commitments and provers are always scoped to one.
type ID uint64

// Context carries the identity of the chain a call is executing on, used to
// enforce home-chain-only and remote-only operation scoping.
type Context struct {
	Chain ID
}

// genesisTime anchors simulated block timestamps.
const genesisTime uint64 = 1700000000

// Chain is a simulated chain: a state store plus the sequence of sealed
// headers committing to it.
type Chain struct {
	mu      sync.RWMutex
	id      ID
	state   *State
	headers []*types.Header
}

// NewChain creates a chain with an empty state and no sealed blocks.
func NewChain(id ID) *Chain {
	return &Chain{id: id, state: NewState()}
}

// ID returns the chain identity.
func (c *Chain) ID() ID { return c.id }

// State returns the chain's mutable state store.
func (c *Chain) State() *State { return c.state }

// Context returns an execution context scoped to this chain.
func (c *Chain) Context() Context { return Context{Chain: c.id} }

// Seal commits the current state root into a new block header and returns
// it. Headers are post-merge shaped: zero difficulty, empty nonce, a base
// fee present.
func (c *Chain) Seal() *types.Header {
	c.mu.Lock()
	defer c.mu.Unlock()

	number := uint64(len(c.headers) + 1)
	var parent types.Hash
	if len(c.headers) > 0 {
		parent = c.headers[len(c.headers)-1].Hash()
	}
	h := &types.Header{
		ParentHash:  parent,
		UncleHash:   types.EmptyUncleHash,
		Root:        c.state.Root(),
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  new(big.Int),
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    30_000_000,
		Time:        genesisTime + number*12,
		BaseFee:     big.NewInt(1_000_000_000),
	}
	c.headers = append(c.headers, h)
	return h
}

// Latest returns the most recently sealed header, or nil before the first
// Seal.
func (c *Chain) Latest() *types.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.headers) == 0 {
		return nil
	}
	return c.headers[len(c.headers)-1]
}

// HeaderByNumber returns the sealed header with the given number, or nil.
func (c *Chain) HeaderByNumber(number uint64) *types.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if number == 0 || number > uint64(len(c.headers)) {
		return nil
	}
	return c.headers[number-1]
}

// Now returns the timestamp the next sealed block would carry, the clock
// used by contracts that record broadcast times.
func (c *Chain) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return genesisTime + uint64(len(c.headers)+1)*12
}
