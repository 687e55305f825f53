package trie

import (
	"errors"

	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

// ErrKeyPresent is returned when an absence proof is requested for a key
// that exists in the trie.
var ErrKeyPresent = errors.New("trie: key present")

// Trie is an in-memory Merkle-Patricia-Trie used to build authenticated
// state and generate proofs against it. It is insert-only: simulated state
// is rebuilt from its backing store rather than mutated in place.
type Trie struct {
	root node
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{}
}

// Update inserts or replaces the value for key. Empty values are ignored,
// mirroring the convention that zero-valued entries are simply absent.
func (t *Trie) Update(key, value []byte) {
	if len(value) == 0 {
		return
	}
	v := make(valueNode, len(value))
	copy(v, value)
	t.root = insert(t.root, keybytesToHex(key), v)
}

// Get retrieves the value for key, or ErrNotFound.
func (t *Trie) Get(key []byte) ([]byte, error) {
	_, val := t.walk(keybytesToHex(key), nil)
	if val == nil {
		return nil, ErrNotFound
	}
	return val, nil
}

// Hash returns the root hash of the trie.
func (t *Trie) Hash() types.Hash {
	if t.root == nil {
		return types.EmptyRootHash
	}
	return crypto.Keccak256Hash(encodeNode(t.root))
}

// Prove generates a Merkle proof for key: the encodings of the resolved
// nodes on the path from the root to the value. Embedded nodes (shorter
// than 32 bytes) travel inside their parent's encoding and are not separate
// proof elements.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	proof, val := t.walk(keybytesToHex(key), collectProof)
	if val == nil {
		return nil, ErrNotFound
	}
	return proof, nil
}

// ProveAbsence generates a proof that key is not present: the encodings of
// the resolved nodes on the path walked until it diverges from key.
func (t *Trie) ProveAbsence(key []byte) ([][]byte, error) {
	proof, val := t.walk(keybytesToHex(key), collectProof)
	if val != nil {
		return nil, ErrKeyPresent
	}
	return proof, nil
}

// collector receives each resolved path node's encoding during a walk.
type collector func(proof *[][]byte, n node, isRoot bool)

// collectProof appends the node's encoding when it is a standalone proof
// element (the root, or any node referenced by hash).
func collectProof(proof *[][]byte, n node, isRoot bool) {
	enc := encodeNode(n)
	if isRoot || len(enc) >= 32 {
		*proof = append(*proof, enc)
	}
}

// walk follows the nibble path through the trie, invoking collect on every
// structural node visited. It returns the value at the path, or nil when
// the path diverges before a value.
func (t *Trie) walk(path []byte, collect collector) ([][]byte, []byte) {
	var proof [][]byte
	n := t.root
	pos := 0
	isRoot := true
	for {
		switch nn := n.(type) {
		case nil:
			return proof, nil

		case valueNode:
			return proof, nn

		case *shortNode:
			if collect != nil {
				collect(&proof, nn, isRoot)
			}
			if len(path)-pos < len(nn.Key) || !keysEqual(nn.Key, path[pos:pos+len(nn.Key)]) {
				return proof, nil
			}
			pos += len(nn.Key)
			n = nn.Val

		case *fullNode:
			if collect != nil {
				collect(&proof, nn, isRoot)
			}
			if pos >= len(path) {
				return proof, nil
			}
			nib := path[pos]
			pos++
			n = nn.Children[nib]

		default:
			return proof, nil
		}
		isRoot = false
	}
}

// insert adds value at the remaining nibble path key below n and returns
// the replacement node. key always carries the trailing terminator nibble.
func insert(n node, key []byte, value valueNode) node {
	switch nn := n.(type) {
	case nil:
		return &shortNode{Key: key, Val: value}

	case *shortNode:
		match := prefixLen(key, nn.Key)
		if match == len(nn.Key) {
			if match == len(key) {
				// Exact key: replace the value.
				return &shortNode{Key: nn.Key, Val: value}
			}
			nn.Val = insert(nn.Val, key[match:], value)
			return nn
		}
		// Paths diverge: split into a branch under the shared prefix.
		branch := &fullNode{}
		setBranchChild(branch, nn.Key[match:], nn.Val)
		setBranchChild(branch, key[match:], value)
		if match == 0 {
			return branch
		}
		return &shortNode{Key: key[:match], Val: branch}

	case *fullNode:
		nib := key[0]
		if nib == terminatorNibble {
			nn.Children[16] = value
			return nn
		}
		nn.Children[nib] = insert(nn.Children[nib], key[1:], value)
		return nn

	default:
		// hashNode: the builder never holds unresolved references.
		return n
	}
}

// setBranchChild places a node (with its remaining key) under a branch.
func setBranchChild(branch *fullNode, key []byte, val node) {
	nib := key[0]
	if nib == terminatorNibble {
		branch.Children[16] = val
		return
	}
	if len(key) == 1 {
		branch.Children[nib] = val
		return
	}
	branch.Children[nib] = &shortNode{Key: key[1:], Val: val}
}
