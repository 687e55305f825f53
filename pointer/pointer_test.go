package pointer

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
	"github.com/openintentsframework/stateproofs/logger"
	"github.com/openintentsframework/stateproofs/prover"
)

var (
	pointerAddr = types.HexToAddress("0x0000000000000000000000000000000000000a01")
	authority   = types.HexToAddress("0x0000000000000000000000000000000000000a02")
	intruder    = types.HexToAddress("0x0000000000000000000000000000000000000a03")
)

func testProver(home *chain.Chain, version uint64) prover.StateProver {
	return prover.NewLatestProver(home, prover.LatestConfig{
		Account: types.HexToAddress("0x0000000000000000000000000000000000000b01"),
		Slot:    types.Uint64Word(0),
	}, version)
}

func TestCodeHashSlot(t *testing.T) {
	// keccak256("openintents.pointer.codehash") with the trailing byte
	// decremented; the full borrow chain is covered by construction.
	h := crypto.Keccak256Hash([]byte("openintents.pointer.codehash"))
	require.NotEqual(t, h, CodeHashSlot)

	// Adding one back must reproduce the hash.
	sum := CodeHashSlot
	for i := len(sum) - 1; i >= 0; i-- {
		sum[i]++
		if sum[i] != 0 {
			break
		}
	}
	require.Equal(t, h, sum)
}

func TestSetImplementation(t *testing.T) {
	home := chain.NewChain(1)
	p := New(pointerAddr, authority, home.State())

	_, err := p.Implementation()
	require.ErrorIs(t, err, ErrNoImplementation)
	_, err = p.PinnedCodeHash()
	require.ErrorIs(t, err, ErrNoImplementation)
	require.Zero(t, p.Version())

	impl := testProver(home, 1)
	require.NoError(t, p.SetImplementation(authority, impl))

	got, err := p.Implementation()
	require.NoError(t, err)
	require.Equal(t, impl, got)
	require.Equal(t, uint64(1), p.Version())

	pinned, err := p.PinnedCodeHash()
	require.NoError(t, err)
	require.Equal(t, crypto.Keccak256Hash(impl.Code()), pinned)
	require.Equal(t, pinned, home.State().Storage(pointerAddr, CodeHashSlot))
}

func TestSetImplementation_AuditLog(t *testing.T) {
	var buf bytes.Buffer
	logger.Set(zerolog.New(&buf))
	t.Cleanup(logger.Disable)

	home := chain.NewChain(1)
	p := New(pointerAddr, authority, home.State())
	require.NoError(t, p.SetImplementation(authority, testProver(home, 1)))

	require.Contains(t, buf.String(), "pointer implementation set")
	require.Contains(t, buf.String(), pointerAddr.Hex())
}

func TestSetImplementation_AuthorityGate(t *testing.T) {
	home := chain.NewChain(1)
	p := New(pointerAddr, authority, home.State())
	err := p.SetImplementation(intruder, testProver(home, 1))
	require.ErrorIs(t, err, ErrNotAuthority)
}

func TestSetImplementation_VersionGate(t *testing.T) {
	home := chain.NewChain(1)
	p := New(pointerAddr, authority, home.State())

	require.ErrorIs(t, p.SetImplementation(authority, testProver(home, 0)), ErrBadVersion)
	require.NoError(t, p.SetImplementation(authority, testProver(home, 3)))
	require.ErrorIs(t, p.SetImplementation(authority, testProver(home, 3)), ErrBadVersion)
	require.ErrorIs(t, p.SetImplementation(authority, testProver(home, 2)), ErrBadVersion)
	require.NoError(t, p.SetImplementation(authority, testProver(home, 4)))
	require.Equal(t, uint64(4), p.Version())
}

func TestRejectedUpgradeLeavesStateUntouched(t *testing.T) {
	home := chain.NewChain(1)
	p := New(pointerAddr, authority, home.State())

	impl := testProver(home, 2)
	require.NoError(t, p.SetImplementation(authority, impl))
	pinned, err := p.PinnedCodeHash()
	require.NoError(t, err)

	require.Error(t, p.SetImplementation(authority, testProver(home, 1)))
	got, err := p.Implementation()
	require.NoError(t, err)
	require.Equal(t, impl, got)
	after, err := p.PinnedCodeHash()
	require.NoError(t, err)
	require.Equal(t, pinned, after)
}
