package trie

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

// stateShapedTrie builds a trie with n hashed keys and scalar values, the
// shape account and storage tries have.
func stateShapedTrie(n int) (*Trie, [][]byte, []types.Hash) {
	tr := New()
	keys := make([][]byte, n)
	values := make([]types.Hash, n)
	for i := 0; i < n; i++ {
		keys[i] = crypto.Keccak256([]byte(fmt.Sprintf("key-%d", i)))
		values[i] = crypto.Keccak256Hash([]byte(fmt.Sprintf("val-%d", i)))
		tr.Update(keys[i], EncodeStorageWord(values[i]))
	}
	return tr, keys, values
}

func TestProveAndVerify(t *testing.T) {
	tr, keys, values := stateShapedTrie(32)
	root := tr.Hash()

	for i, key := range keys {
		proof, err := tr.Prove(key)
		if err != nil {
			t.Fatalf("Prove(%d) error: %v", i, err)
		}
		leaf, err := VerifyProof(root, key, proof)
		if err != nil {
			t.Fatalf("VerifyProof(%d) error: %v", i, err)
		}
		word, err := DecodeStorageWord(leaf)
		if err != nil {
			t.Fatalf("DecodeStorageWord(%d) error: %v", i, err)
		}
		if word != values[i] {
			t.Fatalf("value %d = %s, want %s", i, word, values[i])
		}
	}
}

func TestProve_MissingKey(t *testing.T) {
	tr, _, _ := stateShapedTrie(8)
	if _, err := tr.Prove(crypto.Keccak256([]byte("missing"))); err != ErrNotFound {
		t.Fatalf("Prove(missing) err = %v, want ErrNotFound", err)
	}
}

func TestVerifyProof_Absence(t *testing.T) {
	tr, _, _ := stateShapedTrie(32)
	root := tr.Hash()

	for i := 0; i < 16; i++ {
		key := crypto.Keccak256([]byte(fmt.Sprintf("absent-%d", i)))
		proof, err := tr.ProveAbsence(key)
		if err != nil {
			t.Fatalf("ProveAbsence(%d) error: %v", i, err)
		}
		leaf, err := VerifyProof(root, key, proof)
		if err != nil {
			t.Fatalf("absence proof %d rejected: %v", i, err)
		}
		if leaf != nil {
			t.Fatalf("absence proof %d returned value %x", i, leaf)
		}
	}
}

func TestProveAbsence_PresentKey(t *testing.T) {
	tr, keys, _ := stateShapedTrie(8)
	if _, err := tr.ProveAbsence(keys[0]); err != ErrKeyPresent {
		t.Fatalf("err = %v, want ErrKeyPresent", err)
	}
}

func TestVerifyProof_EmptyRoot(t *testing.T) {
	key := crypto.Keccak256([]byte("any"))

	leaf, err := VerifyProof(types.EmptyRootHash, key, nil)
	if err != nil || leaf != nil {
		t.Fatalf("empty root: leaf = %x, err = %v", leaf, err)
	}
	leaf, err = VerifyProof(types.Hash{}, key, nil)
	if err != nil || leaf != nil {
		t.Fatalf("zero root: leaf = %x, err = %v", leaf, err)
	}
	if _, err := VerifyProof(crypto.Keccak256Hash([]byte("x")), key, nil); !errors.Is(err, ErrProofInvalid) {
		t.Fatalf("empty proof for non-empty root err = %v, want ErrProofInvalid", err)
	}
}

// Absence and malformedness are distinct outcomes: an absence proof for one
// key must not pass as an absence proof for a different key region it never
// walked.
func TestVerifyProof_WrongKeyFails(t *testing.T) {
	tr, keys, _ := stateShapedTrie(32)
	root := tr.Hash()

	proof, err := tr.Prove(keys[0])
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	// A proof for keys[0] walked toward keys[0]; verifying it against a key
	// that diverges at the root either proves absence cleanly (shared
	// divergence point) or fails, but must never report keys[0]'s value.
	other := crypto.Keccak256([]byte("some other key"))
	leaf, err := VerifyProof(root, other, proof)
	if err == nil && leaf != nil {
		t.Fatalf("foreign proof produced value %x", leaf)
	}
}

func TestVerifyProof_TruncatedFails(t *testing.T) {
	tr, keys, _ := stateShapedTrie(32)
	root := tr.Hash()

	proof, err := tr.Prove(keys[0])
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	if len(proof) < 2 {
		t.Skip("proof too short to truncate")
	}
	if _, err := VerifyProof(root, keys[0], proof[:len(proof)-1]); !errors.Is(err, ErrProofInvalid) {
		t.Fatalf("truncated proof err = %v, want ErrProofInvalid", err)
	}
}

func TestVerifyProof_TrailingElementFails(t *testing.T) {
	tr, keys, _ := stateShapedTrie(32)
	root := tr.Hash()

	proof, err := tr.Prove(keys[0])
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	padded := append(append([][]byte{}, proof...), []byte{0xc0})
	if _, err := VerifyProof(root, keys[0], padded); !errors.Is(err, ErrProofInvalid) {
		t.Fatalf("padded proof err = %v, want ErrProofInvalid", err)
	}
}

// Every byte of every proof element is covered by a hash check, so any
// single-byte mutation must be rejected.
func TestVerifyProof_SingleByteMutation(t *testing.T) {
	tr, keys, _ := stateShapedTrie(32)
	root := tr.Hash()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("mutated proof fails", prop.ForAll(
		func(keyIdx, elemPick, bytePick int, delta byte) bool {
			key := keys[keyIdx]
			proof, err := tr.Prove(key)
			if err != nil {
				return false
			}
			mutated := make([][]byte, len(proof))
			for i, elem := range proof {
				mutated[i] = append([]byte(nil), elem...)
			}
			elem := mutated[elemPick%len(mutated)]
			elem[bytePick%len(elem)] ^= delta

			_, err = VerifyProof(root, key, mutated)
			return err != nil
		},
		gen.IntRange(0, 31),
		gen.IntRange(0, 1<<20),
		gen.IntRange(0, 1<<20),
		gen.UInt8Range(1, 255),
	))

	properties.TestingRun(t)
}

func TestVerifyProof_RootMutation(t *testing.T) {
	tr, keys, _ := stateShapedTrie(8)
	root := tr.Hash()
	proof, err := tr.Prove(keys[0])
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	root[0] ^= 1
	if _, err := VerifyProof(root, keys[0], proof); !errors.Is(err, ErrProofInvalid) {
		t.Fatalf("mutated root err = %v, want ErrProofInvalid", err)
	}
}
