package prover

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/fxamacker/cbor/v2"
	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/trie"
	"golang.org/x/crypto/blake2b"
)

// ErrSparseProof is returned when a sparse tree proof is structurally
// invalid or does not reproduce the committed root.
var ErrSparseProof = errors.New("prover: invalid sparse tree proof")

// smtDepth is the fixed tree depth: one level per bit of the leaf key.
const smtDepth = 256

const (
	smtLeafPrefix = 0x00
	smtNodePrefix = 0x01
)

// smtDefaults[i] is the hash of the all-absent subtree of height i.
// smtDefaults[0] is the absent leaf, smtDefaults[smtDepth] the empty root.
var smtDefaults [smtDepth + 1]types.Hash

func init() {
	for i := 0; i < smtDepth; i++ {
		smtDefaults[i+1] = smtHashNode(smtDefaults[i], smtDefaults[i])
	}
}

func smtHashNode(left, right types.Hash) types.Hash {
	return blake2b.Sum256(append(append([]byte{smtNodePrefix}, left[:]...), right[:]...))
}

// smtLeafKey derives the tree position of an (account, slot) pair.
func smtLeafKey(account types.Address, slot types.Hash) types.Hash {
	return blake2b.Sum256(append(account.Bytes(), slot[:]...))
}

// smtLeafHash hashes an occupied leaf. Absent leaves use smtDefaults[0], so
// a zero value never hashes through here.
func smtLeafHash(key, value types.Hash) types.Hash {
	return blake2b.Sum256(append(append([]byte{smtLeafPrefix}, key[:]...), value[:]...))
}

// smtKeyBit returns the key bit selecting the child at tree depth d,
// counted from the root (bit 0 is the key's most significant bit).
func smtKeyBit(key types.Hash, d int) byte {
	return key[d/8] >> (7 - d%8) & 1
}

// SparseSlotInput proves one (account, slot, value) against a sparse tree
// root. Siblings carries only the non-default siblings along the leaf path,
// bottom level first; Bitmap bit i (little-endian within bytes) marks
// whether the sibling at level i is explicit or the default node.
type SparseSlotInput struct {
	Account  []byte // 20 bytes
	Slot     []byte // 32 bytes
	Value    []byte // 32 bytes
	Bitmap   []byte // 32 bytes
	Siblings [][]byte
}

// verifySparseSlot folds a compressed sparse tree proof from the leaf up
// and checks the resulting root against the commitment.
func verifySparseSlot(root types.Hash, in SparseSlotInput) (SlotProof, error) {
	if len(in.Account) != types.AddressLength || len(in.Slot) != types.HashLength ||
		len(in.Value) != types.HashLength || len(in.Bitmap) != types.HashLength {
		return SlotProof{}, fmt.Errorf("%w: field length", ErrInputEncoding)
	}
	explicit := 0
	for _, b := range in.Bitmap {
		explicit += bits.OnesCount8(b)
	}
	if explicit != len(in.Siblings) {
		return SlotProof{}, fmt.Errorf("%w: sibling count does not match bitmap", ErrSparseProof)
	}

	account := types.BytesToAddress(in.Account)
	slot := types.BytesToHash(in.Slot)
	value := types.BytesToHash(in.Value)
	key := smtLeafKey(account, slot)

	cur := smtDefaults[0]
	if !value.IsZero() {
		cur = smtLeafHash(key, value)
	}
	next := 0
	for level := 0; level < smtDepth; level++ {
		sib := smtDefaults[level]
		if in.Bitmap[level/8]>>(level%8)&1 == 1 {
			if len(in.Siblings[next]) != types.HashLength {
				return SlotProof{}, fmt.Errorf("%w: sibling length", ErrSparseProof)
			}
			sib = types.BytesToHash(in.Siblings[next])
			next++
		}
		if smtKeyBit(key, smtDepth-1-level) == 0 {
			cur = smtHashNode(cur, sib)
		} else {
			cur = smtHashNode(sib, cur)
		}
	}
	if cur != root {
		return SlotProof{}, fmt.Errorf("%w: root mismatch", ErrSparseProof)
	}
	return SlotProof{Account: account, Slot: slot, Value: value}, nil
}

// SparseTreeConfig locates the root registry contract on the home chain: a
// mapping from epoch to the target chain's sparse tree root.
type SparseTreeConfig struct {
	Registry     types.Address
	RootSlotBase types.Hash
}

// RootSlot returns the storage slot holding epoch's committed root.
func (c SparseTreeConfig) RootSlot(epoch uint64) types.Hash {
	return chain.MappingSlotUint64(epoch, c.RootSlotBase)
}

// Record writes a target tree root into the registry.
func (c SparseTreeConfig) Record(state *chain.State, epoch uint64, root types.Hash) {
	state.SetStorage(c.Registry, c.RootSlot(epoch), root)
}

// SparseTreeProver proves state of a target chain whose authenticated
// storage is a fixed-depth sparse Merkle tree with blake2b compression
// rather than a Merkle-Patricia trie. The target commitment is the tree
// root itself; roots are committed per epoch to a registry on the home
// chain.
type SparseTreeProver struct {
	homeID  chain.ID
	home    *chain.Chain
	cfg     SparseTreeConfig
	version uint64
}

// NewSparseTreeProver binds a sparse tree prover to its home chain.
func NewSparseTreeProver(home *chain.Chain, cfg SparseTreeConfig, version uint64) *SparseTreeProver {
	return &SparseTreeProver{homeID: home.ID(), home: home, cfg: cfg, version: version}
}

// NewSparseTreeProverCopy builds a detached copy for foreign chains.
func NewSparseTreeProverCopy(homeID chain.ID, cfg SparseTreeConfig, version uint64) *SparseTreeProver {
	return &SparseTreeProver{homeID: homeID, cfg: cfg, version: version}
}

// sparseLocalInput selects a committed epoch for a privileged local read.
type sparseLocalInput struct {
	Epoch uint64
}

// EncodeSparseLocalInput encodes the local read input for an epoch.
func EncodeSparseLocalInput(epoch uint64) ([]byte, error) {
	return cbor.Marshal(sparseLocalInput{Epoch: epoch})
}

func (p *SparseTreeProver) LocalStateCommitment(ctx chain.Context, input []byte) (types.Hash, error) {
	if ctx.Chain != p.homeID {
		return types.Hash{}, ErrNotHomeChain
	}
	if p.home == nil {
		return types.Hash{}, ErrNoHomeBinding
	}
	var in sparseLocalInput
	if err := cbor.Unmarshal(input, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	root := p.home.State().Storage(p.cfg.Registry, p.cfg.RootSlot(in.Epoch))
	if root.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return root, nil
}

// sparseRemoteInput carries a home header and the proof of one epoch's root
// slot in the registry.
type sparseRemoteInput struct {
	HeaderRLP    []byte
	Epoch        uint64
	AccountProof [][]byte
	StorageProof [][]byte
}

// EncodeSparseRemoteInput encodes the remote verification input from a
// sealed home header and the registry slot proof for one epoch.
func EncodeSparseRemoteInput(headerRLP []byte, epoch uint64, p *chain.Proof) ([]byte, error) {
	return cbor.Marshal(sparseRemoteInput{
		HeaderRLP:    headerRLP,
		Epoch:        epoch,
		AccountProof: p.AccountProof,
		StorageProof: p.StorageProof,
	})
}

func (p *SparseTreeProver) VerifyRemoteStateCommitment(ctx chain.Context, home types.Hash, proof []byte) (types.Hash, error) {
	if ctx.Chain == p.homeID {
		return types.Hash{}, ErrOnHomeChain
	}
	var in sparseRemoteInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	header, err := authenticateHeader(home, in.HeaderRLP)
	if err != nil {
		return types.Hash{}, err
	}
	root, err := trie.VerifyStorageValue(header.Root, p.cfg.Registry, p.cfg.RootSlot(in.Epoch), in.AccountProof, in.StorageProof)
	if err != nil {
		return types.Hash{}, err
	}
	if root.IsZero() {
		return types.Hash{}, ErrUnknownCommitment
	}
	return root, nil
}

// VerifyStorageSlot verifies a slot proof against the sparse tree root.
func (p *SparseTreeProver) VerifyStorageSlot(target types.Hash, proof []byte) (SlotProof, error) {
	var in SparseSlotInput
	if err := cbor.Unmarshal(proof, &in); err != nil {
		return SlotProof{}, fmt.Errorf("%w: %v", ErrInputEncoding, err)
	}
	return verifySparseSlot(target, in)
}

func (p *SparseTreeProver) Version() uint64     { return p.version }
func (p *SparseTreeProver) HomeChain() chain.ID { return p.homeID }

func (p *SparseTreeProver) Code() []byte {
	return codeFor("state-prover/sparse-tree", p.version,
		p.cfg.Registry.Bytes(),
		p.cfg.RootSlotBase.Bytes(),
	)
}
