package prover

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/trie"
)

// MaxUnwindDepth bounds the number of batch layers a single verification
// may unwind. Deeper settlement stacks are rejected rather than iterated.
const MaxUnwindDepth = 16

var (
	// ErrSettlementMismatch is returned when an intermediate batch leaf
	// names a chain other than the configured settlement chain. The route
	// is misconfigured; retrying cannot succeed.
	ErrSettlementMismatch = errors.New("prover: batch leaf settles to unexpected chain")

	// ErrUnwindDepth is returned when a proof carries more unwind steps
	// than MaxUnwindDepth, or none at all.
	ErrUnwindDepth = errors.New("prover: unwind step count out of range")

	// ErrBatchProof is returned when a batch inclusion proof does not
	// reproduce the expected batch root.
	ErrBatchProof = errors.New("prover: invalid batch inclusion proof")
)

const (
	batchLeafPrefix = 0x00
	batchNodePrefix = 0x01
)

// BatchLeaf is one entry of a batch log: the chain the entry settles to and
// the root committed for it. For intermediate layers NextRoot is another
// batch root; for the terminal layer it is the target block hash.
type BatchLeaf struct {
	ChainID uint64
	Root    types.Hash
}

// Encode returns the leaf's hash preimage: 8-byte big-endian chain id
// followed by the 32-byte root.
func (l BatchLeaf) Encode() []byte {
	b := make([]byte, 8+types.HashLength)
	binary.BigEndian.PutUint64(b, l.ChainID)
	copy(b[8:], l.Root[:])
	return b
}

// Hash returns the keccak256 leaf node: prefix 0x00 domain-separates leaves
// from interior nodes.
func (l BatchLeaf) Hash() types.Hash {
	return crypto.Keccak256Hash([]byte{batchLeafPrefix}, l.Encode())
}

// batchNodeHash combines two interior children under the 0x01 prefix.
func batchNodeHash(left, right types.Hash) types.Hash {
	return crypto.Keccak256Hash([]byte{batchNodePrefix}, left[:], right[:])
}

// UnwindStep proves one BatchLeaf's inclusion in a batch tree: the leaf,
// its index, and the sibling path from the leaf upward.
type UnwindStep struct {
	Leaf     BatchLeaf
	Index    uint64
	Siblings [][]byte // 32 bytes each, bottom level first
}

// verifyStep folds the sibling path and checks the result against root.
func verifyStep(root types.Hash, step UnwindStep) error {
	cur := step.Leaf.Hash()
	idx := step.Index
	for _, raw := range step.Siblings {
		if len(raw) != types.HashLength {
			return fmt.Errorf("%w: sibling length", ErrBatchProof)
		}
		sib := types.BytesToHash(raw)
		if idx&1 == 0 {
			cur = batchNodeHash(cur, sib)
		} else {
			cur = batchNodeHash(sib, cur)
		}
		idx >>= 1
	}
	if idx != 0 {
		return fmt.Errorf("%w: leaf index exceeds tree size", ErrBatchProof)
	}
	if cur != root {
		return fmt.Errorf("%w: root mismatch", ErrBatchProof)
	}
	return nil
}

// unwind walks the step chain from the starting batch root down to the
// leaf naming the target chain. Intermediate leaves must settle to the
// settlement chain; the final leaf must settle to the target chain.
func unwind(start types.Hash, steps []UnwindStep, settlement, target chain.ID) (types.Hash, error) {
	if len(steps) == 0 || len(steps) > MaxUnwindDepth {
		return types.Hash{}, ErrUnwindDepth
	}
	root := start
	for i, step := range steps {
		if err := verifyStep(root, step); err != nil {
			return types.Hash{}, fmt.Errorf("step %d: %w", i, err)
		}
		last := i == len(steps)-1
		want := settlement
		if last {
			want = target
		}
		if chain.ID(step.Leaf.ChainID) != want {
			return types.Hash{}, fmt.Errorf("step %d: %w: leaf names chain %d, want %d",
				i, ErrSettlementMismatch, step.Leaf.ChainID, want)
		}
		root = step.Leaf.Root
	}
	return root, nil
}

// BatchLogConfig locates the batch outbox on the home chain and fixes the
// settlement topology the unwind must follow.
type BatchLogConfig struct {
	Outbox          types.Address
	RootSlotBase    types.Hash // mapping batch index -> batch root
	SettlementChain chain.ID
	TargetChain     chain.ID
}

// RootSlot returns the storage slot holding index's batch root.
func (c BatchLogConfig) RootSlot(index uint64) types.Hash {
	return chain.MappingSlotUint64(index, c.RootSlotBase)
}

// Record writes a sealed batch root into the outbox.
func (c BatchLogConfig) Record(state *chain.State, index uint64, root types.Hash) {
	state.SetStorage(c.Outbox, c.RootSlot(index), root)
}

// BatchLogProver proves target block hashes committed through layered batch
// logs: the home chain's outbox holds batch roots whose leaves commit to
// further batch roots on settlement layers, terminating in a leaf that
// carries the target chain's block hash.
type BatchLogProver struct {
	mptTarget

	homeID  chain.ID
	home    *chain.Chain
	cfg     BatchLogConfig
	version uint64
}

// NewBatchLogProver binds a batch log prover to its home chain.
func NewBatchLogProver(home *chain.Chain, cfg BatchLogConfig, version uint64) *BatchLogProver {
	return &BatchLogProver{homeID: home.ID(), home: home, cfg: cfg, version: version}
}

// NewBatchLogProverCopy builds a detached copy for foreign chains.
func NewBatchLogProverCopy(homeID chain.ID, cfg BatchLogConfig, version uint64) *BatchLogProver {
	return &BatchLogProver{homeID: homeID, cfg: cfg, version: version}
}

// batchLocalInput selects a batch and the unwind path beneath it. The batch
// root itself is read from the outbox; the steps are still verified since
// only the root is trusted state.
type batchLocalInput struct {
	BatchIndex uint64
	Steps      []UnwindStep
}

// EncodeBatchLocalInput encodes the local read input for one batch.
func EncodeBatchLocalInput(index uint64, steps []UnwindStep) ([]byte, error) {
	return cbor.Marshal(batchLocalInput{BatchIndex: index, Steps: steps})
}

func (p *BatchLogProver) LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error) {
	if ctx.Chain != p.homeID {
		return types.Hash{}, ErrNotHomeChain
	}
	if p.home == nil {
		return types.Hash{}, ErrNoHomeBinding
	}
	var in batchLocalInput
	if err := cbor.Unmarshal(input, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	root := p.home.State().Storage(p.cfg.Outbox, p.cfg.RootSlot(in.BatchIndex))
	if root.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return unwind(root, in.Steps, p.cfg.SettlementChain, p.cfg.TargetChain)
}

// batchRemoteInput carries a home header, the outbox slot proof for one
// batch root, and the unwind path beneath it.
type batchRemoteInput struct {
	HeaderRLP    []byte
	BatchIndex   uint64
	AccountProof [][]byte
	StorageProof [][]byte
	Steps        []UnwindStep
}

// EncodeBatchRemoteInput encodes the remote verification input from a
// sealed home header, the outbox slot proof and the unwind steps.
func EncodeBatchRemoteInput(headerRLP []byte, index uint64, p *chain.Proof, steps []UnwindStep) ([]byte, error) {
	return cbor.Marshal(batchRemoteInput{
		HeaderRLP:    headerRLP,
		BatchIndex:   index,
		AccountProof: p.AccountProof,
		StorageProof: p.StorageProof,
		Steps:        steps,
	})
}

func (p *BatchLogProver) VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error) {
	if ctx.Chain == p.homeID {
		return types.Hash{}, ErrOnHomeChain
	}
	var in batchRemoteInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	header, err := authenticateHeader(home, in.HeaderRLP)
	if err != nil {
		return types.Hash{}, err
	}
	root, err := trie.VerifyStorageValue(header.Root, p.cfg.Outbox, p.cfg.RootSlot(in.BatchIndex), in.AccountProof, in.StorageProof)
	if err != nil {
		return types.Hash{}, err
	}
	if root.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return unwind(root, in.Steps, p.cfg.SettlementChain, p.cfg.TargetChain)
}

func (p *BatchLogProver) Version() uint64     { return p.version }
func (p *BatchLogProver) HomeChain() chain.ID { return p.homeID }

func (p *BatchLogProver) Code() []byte {
	var settlement, target [8]byte
	binary.BigEndian.PutUint64(settlement[:], uint64(p.cfg.SettlementChain))
	binary.BigEndian.PutUint64(target[:], uint64(p.cfg.TargetChain))
	return codeFor("state-prover/batch-log", p.version,
		p.cfg.Outbox.Bytes(),
		p.cfg.RootSlotBase.Bytes(),
		settlement[:],
		target[:],
	)
}
