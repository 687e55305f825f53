package prover

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/trie"
)

// LatestConfig locates an oracle contract that exposes only the most recent
// target block hash in a single fixed slot.
type LatestConfig struct {
	Account types.Address
	Slot    types.Hash
}

// LatestProver proves the single most recent target block hash published by
// an oracle on its home chain. Proofs built against an overwritten value go
// stale: the header in the proof no longer hashes to the home commitment
// and verification fails with ErrHeaderMismatch, so callers regenerate the
// proof and retry.
type LatestProver struct {
	mptTarget

	homeID  chain.ID
	home    *chain.Chain
	cfg     LatestConfig
	version uint64
}

// NewLatestProver binds a latest-only prover to its home chain.
func NewLatestProver(home *chain.Chain, cfg LatestConfig, version uint64) *LatestProver {
	return &LatestProver{homeID: home.ID(), home: home, cfg: cfg, version: version}
}

// NewLatestProverCopy builds a detached copy for foreign chains.
func NewLatestProverCopy(homeID chain.ID, cfg LatestConfig, version uint64) *LatestProver {
	return &LatestProver{homeID: homeID, cfg: cfg, version: version}
}

// LocalStateCommitment reads the oracle slot directly. The input is unused
// since the oracle holds exactly one value.
func (p *LatestProver) LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error) {
	if ctx.Chain != p.homeID {
		return types.Hash{}, ErrNotHomeChain
	}
	if p.home == nil {
		return types.Hash{}, ErrNoHomeBinding
	}
	hash := p.home.State().Storage(p.cfg.Account, p.cfg.Slot)
	if hash.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return hash, nil
}

// latestRemoteInput carries a home header and the proof of the oracle slot
// under its state root.
type latestRemoteInput struct {
	HeaderRLP    []byte
	AccountProof [][]byte
	StorageProof [][]byte
}

// EncodeLatestRemoteInput encodes the remote verification input from a
// sealed home header and the oracle slot proof.
func EncodeLatestRemoteInput(headerRLP []byte, p *chain.Proof) ([]byte, error) {
	return cbor.Marshal(latestRemoteInput{
		HeaderRLP:    headerRLP,
		AccountProof: p.AccountProof,
		StorageProof: p.StorageProof,
	})
}

func (p *LatestProver) VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error) {
	if ctx.Chain == p.homeID {
		return types.Hash{}, ErrOnHomeChain
	}
	var in latestRemoteInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	header, err := authenticateHeader(home, in.HeaderRLP)
	if err != nil {
		return types.Hash{}, err
	}
	hash, err := trie.VerifyStorageValue(header.Root, p.cfg.Account, p.cfg.Slot, in.AccountProof, in.StorageProof)
	if err != nil {
		return types.Hash{}, err
	}
	if hash.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return hash, nil
}

func (p *LatestProver) Version() uint64     { return p.version }
func (p *LatestProver) HomeChain() chain.ID { return p.homeID }

func (p *LatestProver) Code() []byte {
	return codeFor("state-prover/latest", p.version,
		p.cfg.Account.Bytes(),
		p.cfg.Slot.Bytes(),
	)
}
