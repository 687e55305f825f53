// Package trie implements the Merkle-Patricia-Trie proof primitive: an
// in-memory trie for building state and generating proofs, and stateless
// verification of account and storage proofs against a bare root hash.
package trie

import (
	"errors"

	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/rlp"
)

var (
	// ErrNotFound is returned when a key is not present in the trie.
	ErrNotFound = errors.New("trie: key not found")
)

// node is one of shortNode, fullNode, hashNode or valueNode.
type node interface{}

// shortNode is a leaf or extension: Key holds hex nibbles (with terminator
// for leaves), Val a valueNode (leaf) or child node (extension).
type shortNode struct {
	Key []byte
	Val node
}

// fullNode is a branch with sixteen children plus a value slot.
type fullNode struct {
	Children [17]node
}

// hashNode is a 32-byte reference to a node stored elsewhere.
type hashNode []byte

// valueNode holds a leaf value.
type valueNode []byte

// nodeRef returns the parent-side reference of a node: the keccak hash of
// its encoding when 32 bytes or longer, the raw encoding itself otherwise
// (an embedded node). embedded reports which form was returned.
func nodeRef(n node) (ref []byte, embedded bool) {
	enc := encodeNode(n)
	if len(enc) < 32 {
		return enc, true
	}
	return crypto.Keccak256(enc), false
}

// encodeNode returns the canonical RLP encoding of a node. Child nodes are
// collapsed to their references first.
func encodeNode(n node) []byte {
	switch n := n.(type) {
	case *shortNode:
		var p []byte
		p = rlp.AppendString(p, hexToCompact(n.Key))
		p = appendChild(p, n.Val)
		return rlp.WrapList(p)

	case *fullNode:
		var p []byte
		for i := 0; i < 16; i++ {
			p = appendChild(p, n.Children[i])
		}
		if v, ok := n.Children[16].(valueNode); ok {
			p = rlp.AppendString(p, v)
		} else {
			p = rlp.AppendString(p, nil)
		}
		return rlp.WrapList(p)

	case hashNode:
		return []byte(n)

	case valueNode:
		return rlp.EncodeString(n)

	default:
		return nil
	}
}

// appendChild appends a child reference to an RLP list payload: values as
// strings, hash references as 32-byte strings, embedded nodes verbatim.
func appendChild(p []byte, child node) []byte {
	switch c := child.(type) {
	case nil:
		return rlp.AppendString(p, nil)
	case valueNode:
		return rlp.AppendString(p, c)
	case hashNode:
		return rlp.AppendString(p, c)
	default:
		ref, embedded := nodeRef(c)
		if embedded {
			return append(p, ref...)
		}
		return rlp.AppendString(p, ref)
	}
}
