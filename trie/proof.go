package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/rlp"
)

var (
	// ErrProofInvalid is returned when a Merkle proof is structurally
	// invalid: a hash mismatch at any step, malformed node encoding,
	// inconsistent nibble consumption, or leftover proof elements.
	ErrProofInvalid = errors.New("trie: invalid proof")
)

// VerifyProof verifies a Merkle proof for key against a root hash and
// returns the proven value. A nil value with a nil error is a well-formed
// proof of absence; it is never conflated with a malformed proof, which
// always returns an error.
//
// The proof is the ordered list of resolved node encodings from the root
// toward the key. Each element must hash to the reference expected by its
// predecessor; embedded children (encodings shorter than 32 bytes) are
// followed inside their parent element without consuming proof elements.
func VerifyProof(rootHash types.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if len(proof) == 0 {
		if rootHash == types.EmptyRootHash || rootHash.IsZero() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: empty proof for non-empty root", ErrProofInvalid)
	}

	path := keybytesToHex(key)
	want := rootHash[:]
	pos := 0
	idx := 0

	for idx < len(proof) {
		elem := proof[idx]
		idx++
		if !bytes.Equal(crypto.Keccak256(elem), want) {
			return nil, fmt.Errorf("%w: node hash mismatch at element %d", ErrProofInvalid, idx-1)
		}

		// Walk within the element, following embedded children in place.
		current := elem
	inner:
		for {
			items, err := rlp.SplitList(current)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
			}

			switch len(items) {
			case 2:
				nibbles := compactToHex(items[0])
				if len(nibbles) > len(path)-pos || !keysEqual(nibbles, path[pos:pos+len(nibbles)]) {
					// Path diverges at this node: proven absent.
					return finishAbsent(proof, idx)
				}
				pos += len(nibbles)

				if hasTerm(nibbles) {
					// Leaf. The nibble match above consumed the full
					// remaining path including the terminator.
					return finishValue(items[1], proof, idx)
				}

				// Extension: descend into the child reference.
				next, embedded, err := childRef(items[1])
				if err != nil {
					return nil, err
				}
				if embedded {
					current = next
					continue inner
				}
				want = next
				break inner

			case 17:
				nib := path[pos]
				pos++
				if nib == terminatorNibble {
					if len(items[16]) == 0 {
						return finishAbsent(proof, idx)
					}
					return finishValue(items[16], proof, idx)
				}
				ref := items[nib]
				if len(ref) == 0 {
					// Empty child slot: proven absent.
					return finishAbsent(proof, idx)
				}
				next, embedded, err := childRef(ref)
				if err != nil {
					return nil, err
				}
				if embedded {
					current = next
					continue inner
				}
				want = next
				break inner

			default:
				return nil, fmt.Errorf("%w: node has %d elements, expected 2 or 17", ErrProofInvalid, len(items))
			}
		}
	}

	// Ran out of proof elements while a hash reference was still pending.
	return nil, fmt.Errorf("%w: proof truncated", ErrProofInvalid)
}

// childRef classifies a child reference from a decoded node: a 32-byte hash
// reference, or an embedded node encoding (always an RLP list shorter than
// 32 bytes).
func childRef(ref []byte) (next []byte, embedded bool, err error) {
	if len(ref) == 32 {
		return ref, false, nil
	}
	if len(ref) > 0 && len(ref) < 32 && ref[0] >= 0xc0 {
		return ref, true, nil
	}
	return nil, false, fmt.Errorf("%w: malformed child reference", ErrProofInvalid)
}

// finishValue completes a successful walk: the value must be non-empty and
// no unverified proof elements may remain.
func finishValue(val []byte, proof [][]byte, idx int) ([]byte, error) {
	if idx != len(proof) {
		return nil, fmt.Errorf("%w: %d unused proof elements", ErrProofInvalid, len(proof)-idx)
	}
	if len(val) == 0 {
		return nil, nil
	}
	return val, nil
}

// finishAbsent completes an absence walk: divergence must occur at the last
// proof element, otherwise trailing elements are unverifiable.
func finishAbsent(proof [][]byte, idx int) ([]byte, error) {
	if idx != len(proof) {
		return nil, fmt.Errorf("%w: %d unused proof elements", ErrProofInvalid, len(proof)-idx)
	}
	return nil, nil
}
