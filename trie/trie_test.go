package trie

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

func TestEmptyTrieHash(t *testing.T) {
	if got := New().Hash(); got != types.EmptyRootHash {
		t.Fatalf("empty trie hash = %s, want %s", got, types.EmptyRootHash)
	}
}

func TestUpdateGet(t *testing.T) {
	tr := New()
	tr.Update([]byte("doe"), []byte("reindeer"))
	tr.Update([]byte("dog"), []byte("puppy"))
	tr.Update([]byte("dogglesworth"), []byte("cat"))

	tests := []struct {
		key  string
		want string
	}{
		{"doe", "reindeer"},
		{"dog", "puppy"},
		{"dogglesworth", "cat"},
	}
	for _, tt := range tests {
		got, err := tr.Get([]byte(tt.key))
		if err != nil {
			t.Errorf("Get(%q) error: %v", tt.key, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	if _, err := tr.Get([]byte("unknown")); err != ErrNotFound {
		t.Errorf("Get(unknown) err = %v, want ErrNotFound", err)
	}
}

func TestUpdateReplacesValue(t *testing.T) {
	tr := New()
	tr.Update([]byte("key"), []byte("old"))
	before := tr.Hash()
	tr.Update([]byte("key"), []byte("new"))

	got, err := tr.Get([]byte("key"))
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("Get = %q, want %q", got, "new")
	}
	if tr.Hash() == before {
		t.Fatal("hash unchanged after value replacement")
	}
}

func TestUpdateIgnoresEmptyValue(t *testing.T) {
	tr := New()
	tr.Update([]byte("key"), nil)
	if got := tr.Hash(); got != types.EmptyRootHash {
		t.Fatalf("hash after empty-value update = %s, want empty root", got)
	}
}

// -- differential against go-ethereum --

// stackTrieRoot computes the reference root for a key/value set using
// go-ethereum's stack trie, which requires ascending key order.
func stackTrieRoot(t *testing.T, kvs map[string][]byte) types.Hash {
	t.Helper()
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	st := gethtrie.NewStackTrie(nil)
	for _, k := range keys {
		if err := st.Update([]byte(k), kvs[k]); err != nil {
			t.Fatalf("stack trie update: %v", err)
		}
	}
	return types.BytesToHash(st.Hash().Bytes())
}

func TestHashMatchesGeth(t *testing.T) {
	tests := []struct {
		name string
		kvs  map[string][]byte
	}{
		{
			"single entry",
			map[string][]byte{"only": []byte("one")},
		},
		{
			"shared prefixes",
			map[string][]byte{
				"doe": []byte("reindeer"),
				"dog": []byte("puppy"),
				"dot": []byte("matrix"),
			},
		},
		{
			"long values",
			map[string][]byte{
				"a": bytes.Repeat([]byte{0x61}, 80),
				"b": bytes.Repeat([]byte{0x62}, 80),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			for k, v := range tt.kvs {
				tr.Update([]byte(k), v)
			}
			want := stackTrieRoot(t, tt.kvs)
			if got := tr.Hash(); got != want {
				t.Fatalf("root = %s, geth stack trie = %s", got, want)
			}
		})
	}
}

func TestHashMatchesGeth_HashedKeys(t *testing.T) {
	// State-shaped data: 32-byte hashed keys, RLP-scalar values.
	kvs := make(map[string][]byte)
	for i := 0; i < 64; i++ {
		key := crypto.Keccak256([]byte(fmt.Sprintf("key-%d", i)))
		kvs[string(key)] = EncodeStorageWord(crypto.Keccak256Hash([]byte(fmt.Sprintf("val-%d", i))))
	}
	tr := New()
	for k, v := range kvs {
		tr.Update([]byte(k), v)
	}
	want := stackTrieRoot(t, kvs)
	if got := tr.Hash(); got != want {
		t.Fatalf("root = %s, geth stack trie = %s", got, want)
	}
}
