package prover

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/trie"
)

// ErrPreimageMismatch is returned when a supplied output root preimage does
// not hash to the claim recorded by the game registry.
var ErrPreimageMismatch = errors.New("prover: output root preimage mismatch")

// gameStatusResolved is the registry status of a game resolved in favor of
// the proposed output root.
const gameStatusResolved = 2

// OutputRootPreimage is the four-word preimage of an optimistic rollup
// output root. Its keccak256 must equal the claim a resolved game settled
// on; BlockHash is the target commitment the claim vouches for.
type OutputRootPreimage struct {
	Version           types.Hash
	StateRoot         types.Hash
	MessagePasserRoot types.Hash
	BlockHash         types.Hash
}

// Root returns keccak256 of the preimage words in order.
func (p OutputRootPreimage) Root() types.Hash {
	return crypto.Keccak256Hash(p.Version[:], p.StateRoot[:], p.MessagePasserRoot[:], p.BlockHash[:])
}

// GameConfig locates the dispute game registry on the home chain: a claims
// mapping and a status mapping, both keyed by game index.
type GameConfig struct {
	Registry       types.Address
	ClaimSlotBase  types.Hash
	StatusSlotBase types.Hash
}

// ClaimSlot returns the storage slot of game index's settled claim.
func (c GameConfig) ClaimSlot(index uint64) types.Hash {
	return chain.MappingSlotUint64(index, c.ClaimSlotBase)
}

// StatusSlot returns the storage slot of game index's resolution status.
func (c GameConfig) StatusSlot(index uint64) types.Hash {
	return chain.MappingSlotUint64(index, c.StatusSlotBase)
}

// Record writes a resolved game into the registry.
func (c GameConfig) Record(state *chain.State, index uint64, claim types.Hash) {
	state.SetStorage(c.Registry, c.ClaimSlot(index), claim)
	state.SetStorage(c.Registry, c.StatusSlot(index), types.Uint64Word(gameStatusResolved))
}

// DisputeGameProver proves optimistic rollup block hashes through resolved
// dispute games recorded on its home chain. The registry stores only the
// output root hash, so every verification carries the preimage and is
// checked by hash equality before the block hash is released.
type DisputeGameProver struct {
	mptTarget

	homeID  chain.ID
	home    *chain.Chain
	cfg     GameConfig
	version uint64
}

// NewDisputeGameProver binds a dispute game prover to its home chain.
func NewDisputeGameProver(home *chain.Chain, cfg GameConfig, version uint64) *DisputeGameProver {
	return &DisputeGameProver{homeID: home.ID(), home: home, cfg: cfg, version: version}
}

// NewDisputeGameProverCopy builds a detached copy for foreign chains.
func NewDisputeGameProverCopy(homeID chain.ID, cfg GameConfig, version uint64) *DisputeGameProver {
	return &DisputeGameProver{homeID: homeID, cfg: cfg, version: version}
}

// gameLocalInput selects a game and supplies the preimage of its claim.
type gameLocalInput struct {
	GameIndex uint64
	Preimage  OutputRootPreimage
}

// EncodeGameLocalInput encodes the local read input for one resolved game.
func EncodeGameLocalInput(index uint64, preimage OutputRootPreimage) ([]byte, error) {
	return cbor.Marshal(gameLocalInput{GameIndex: index, Preimage: preimage})
}

func (p *DisputeGameProver) LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error) {
	if ctx.Chain != p.homeID {
		return types.Hash{}, ErrNotHomeChain
	}
	if p.home == nil {
		return types.Hash{}, ErrNoHomeBinding
	}
	var in gameLocalInput
	if err := cbor.Unmarshal(input, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	state := p.home.State()
	claim := state.Storage(p.cfg.Registry, p.cfg.ClaimSlot(in.GameIndex))
	status := state.Storage(p.cfg.Registry, p.cfg.StatusSlot(in.GameIndex))
	return resolveGame(claim, status, in.Preimage)
}

// gameRemoteInput carries a home header, the game selection with its claim
// preimage, and proofs for the registry's claim and status slots.
type gameRemoteInput struct {
	HeaderRLP    []byte
	GameIndex    uint64
	Preimage     OutputRootPreimage
	AccountProof [][]byte
	ClaimProof   [][]byte
	StatusProof  [][]byte
}

// EncodeGameRemoteInput encodes the remote verification input from a sealed
// home header, the claim preimage and the two registry slot proofs.
func EncodeGameRemoteInput(headerRLP []byte, index uint64, preimage OutputRootPreimage, claimProof, statusProof *chain.Proof) ([]byte, error) {
	return cbor.Marshal(gameRemoteInput{
		HeaderRLP:    headerRLP,
		GameIndex:    index,
		Preimage:     preimage,
		AccountProof: claimProof.AccountProof,
		ClaimProof:   claimProof.StorageProof,
		StatusProof:  statusProof.StorageProof,
	})
}

func (p *DisputeGameProver) VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error) {
	if ctx.Chain == p.homeID {
		return types.Hash{}, ErrOnHomeChain
	}
	var in gameRemoteInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	header, err := authenticateHeader(home, in.HeaderRLP)
	if err != nil {
		return types.Hash{}, err
	}
	claim, err := trie.VerifyStorageValue(header.Root, p.cfg.Registry, p.cfg.ClaimSlot(in.GameIndex), in.AccountProof, in.ClaimProof)
	if err != nil {
		return types.Hash{}, err
	}
	status, err := trie.VerifyStorageValue(header.Root, p.cfg.Registry, p.cfg.StatusSlot(in.GameIndex), in.AccountProof, in.StatusProof)
	if err != nil {
		return types.Hash{}, err
	}
	return resolveGame(claim, status, in.Preimage)
}

// resolveGame releases the preimage's block hash once the claim exists, the
// game resolved in the claim's favor and the preimage hashes to the claim.
func resolveGame(claim, status types.Hash, preimage OutputRootPreimage) (types.Hash, error) {
	if claim.IsZero() || status != types.Uint64Word(gameStatusResolved) {
		return types.Hash{}, ErrUnknownCommitment
	}
	if preimage.Root() != claim {
		return types.Hash{}, ErrPreimageMismatch
	}
	return preimage.BlockHash, nil
}

func (p *DisputeGameProver) Version() uint64     { return p.version }
func (p *DisputeGameProver) HomeChain() chain.ID { return p.homeID }

func (p *DisputeGameProver) Code() []byte {
	return codeFor("state-prover/dispute-game", p.version,
		p.cfg.Registry.Bytes(),
		p.cfg.ClaimSlotBase.Bytes(),
		p.cfg.StatusSlotBase.Bytes(),
	)
}
