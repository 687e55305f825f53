package prover

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/trie"
)

// BufferConfig locates a circular block-hash buffer contract on the home
// chain. The contract keeps two mappings keyed by index = number % Size:
// one for the recorded target block hash and one for the block number that
// wrote it, so eviction by a later block is detectable.
type BufferConfig struct {
	Account        types.Address
	HashSlotBase   types.Hash
	NumberSlotBase types.Hash
	Size           uint64
}

// HashSlot returns the storage slot holding the recorded hash for number.
func (c BufferConfig) HashSlot(number uint64) types.Hash {
	return chain.MappingSlotUint64(number%c.Size, c.HashSlotBase)
}

// NumberSlot returns the storage slot holding the recording block number
// for number's buffer index.
func (c BufferConfig) NumberSlot(number uint64) types.Hash {
	return chain.MappingSlotUint64(number%c.Size, c.NumberSlotBase)
}

// Push records a target block hash into the buffer, evicting whatever the
// modulo index previously held.
func (c BufferConfig) Push(state *chain.State, number uint64, hash types.Hash) {
	state.SetStorage(c.Account, c.HashSlot(number), hash)
	state.SetStorage(c.Account, c.NumberSlot(number), types.Uint64Word(number))
}

// BufferProver proves target chain block hashes recorded in a circular
// buffer contract on its home chain.
type BufferProver struct {
	mptTarget

	homeID  chain.ID
	home    *chain.Chain // nil for detached copies
	cfg     BufferConfig
	version uint64
}

// NewBufferProver binds a buffer prover to its home chain for local reads.
func NewBufferProver(home *chain.Chain, cfg BufferConfig, version uint64) *BufferProver {
	return &BufferProver{homeID: home.ID(), home: home, cfg: cfg, version: version}
}

// NewBufferProverCopy builds a detached copy for verification on foreign
// chains. Local reads on a copy fail.
func NewBufferProverCopy(homeID chain.ID, cfg BufferConfig, version uint64) *BufferProver {
	return &BufferProver{homeID: homeID, cfg: cfg, version: version}
}

// bufferLocalInput selects a buffer entry for a privileged local read.
type bufferLocalInput struct {
	BlockNumber uint64
}

// EncodeBufferLocalInput encodes the local read input for a block number.
func EncodeBufferLocalInput(number uint64) ([]byte, error) {
	return cbor.Marshal(bufferLocalInput{BlockNumber: number})
}

func (p *BufferProver) LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error) {
	if ctx.Chain != p.homeID {
		return types.Hash{}, ErrNotHomeChain
	}
	if p.home == nil {
		return types.Hash{}, ErrNoHomeBinding
	}
	var in bufferLocalInput
	if err := cbor.Unmarshal(input, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	state := p.home.State()
	recorded := state.Storage(p.cfg.Account, p.cfg.NumberSlot(in.BlockNumber))
	if recorded != types.Uint64Word(in.BlockNumber) {
		// Never written, or evicted by a later block sharing the index.
		return types.Hash{}, ErrUnknownCommitment
	}
	hash := state.Storage(p.cfg.Account, p.cfg.HashSlot(in.BlockNumber))
	if hash.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return hash, nil
}

// bufferRemoteInput carries a home chain header plus proofs for the two
// buffer slots of one entry. The account proof is shared since both
// mappings live in the buffer contract's account.
type bufferRemoteInput struct {
	HeaderRLP    []byte
	BlockNumber  uint64
	AccountProof [][]byte
	HashProof    [][]byte
	NumberProof  [][]byte
}

// EncodeBufferRemoteInput encodes the remote verification input from a
// sealed home header and the two slot proofs of one buffer entry.
func EncodeBufferRemoteInput(headerRLP []byte, number uint64, hashProof, numberProof *chain.Proof) ([]byte, error) {
	return cbor.Marshal(bufferRemoteInput{
		HeaderRLP:    headerRLP,
		BlockNumber:  number,
		AccountProof: hashProof.AccountProof,
		HashProof:    hashProof.StorageProof,
		NumberProof:  numberProof.StorageProof,
	})
}

func (p *BufferProver) VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error) {
	if ctx.Chain == p.homeID {
		return types.Hash{}, ErrOnHomeChain
	}
	var in bufferRemoteInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	header, err := authenticateHeader(home, in.HeaderRLP)
	if err != nil {
		return types.Hash{}, err
	}
	recorded, err := trie.VerifyStorageValue(header.Root, p.cfg.Account, p.cfg.NumberSlot(in.BlockNumber), in.AccountProof, in.NumberProof)
	if err != nil {
		return types.Hash{}, err
	}
	if recorded != types.Uint64Word(in.BlockNumber) {
		return types.Hash{}, ErrUnknownCommitment
	}
	hash, err := trie.VerifyStorageValue(header.Root, p.cfg.Account, p.cfg.HashSlot(in.BlockNumber), in.AccountProof, in.HashProof)
	if err != nil {
		return types.Hash{}, err
	}
	if hash.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return hash, nil
}

func (p *BufferProver) Version() uint64     { return p.version }
func (p *BufferProver) HomeChain() chain.ID { return p.homeID }

func (p *BufferProver) Code() []byte {
	return codeFor("state-prover/buffer", p.version,
		p.cfg.Account.Bytes(),
		p.cfg.HashSlotBase.Bytes(),
		p.cfg.NumberSlotBase.Bytes(),
		types.Uint64Word(p.cfg.Size).Bytes(),
	)
}
