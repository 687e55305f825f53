// Package broadcast implements the timestamped publish log whose entries
// the route verifier authenticates: a contract account that records, once
// per (message, publisher) pair, the time the pair was first seen.
package broadcast

import (
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

// MessageSlot derives the storage slot a (message, publisher) pair is
// recorded under: keccak256 of the message hash followed by the publisher
// address left-padded to a word.
func MessageSlot(message types.Hash, publisher types.Address) types.Hash {
	return crypto.Keccak256Hash(message[:], publisher.Word().Bytes())
}

// Broadcaster writes publish timestamps into its account's storage. A
// (message, publisher) pair is recorded at most once; later broadcasts of
// the same pair keep the original timestamp.
type Broadcaster struct {
	state *chain.State
	addr  types.Address
	now   func() uint64
}

// New creates a broadcaster writing into addr's storage on state, reading
// the current time from now.
func New(state *chain.State, addr types.Address, now func() uint64) *Broadcaster {
	return &Broadcaster{state: state, addr: addr, now: now}
}

// Address returns the broadcaster's account address.
func (b *Broadcaster) Address() types.Address { return b.addr }

// Broadcast records message as published by publisher at the current time.
// It returns the recorded timestamp, which is the original one when the
// pair was already published.
func (b *Broadcaster) Broadcast(message types.Hash, publisher types.Address) uint64 {
	slot := MessageSlot(message, publisher)
	if existing := b.state.Storage(b.addr, slot); !existing.IsZero() {
		ts, _ := existing.Uint64()
		return ts
	}
	ts := b.now()
	b.state.SetStorage(b.addr, slot, types.Uint64Word(ts))
	return ts
}
