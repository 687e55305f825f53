package prover

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

func testPreimage() OutputRootPreimage {
	return OutputRootPreimage{
		Version:           types.Hash{},
		StateRoot:         crypto.Keccak256Hash([]byte("l2 state root")),
		MessagePasserRoot: crypto.Keccak256Hash([]byte("message passer root")),
		BlockHash:         crypto.Keccak256Hash([]byte("l2 block hash")),
	}
}

func TestOutputRootPreimage(t *testing.T) {
	pre := testPreimage()
	want := crypto.Keccak256Hash(pre.Version[:], pre.StateRoot[:], pre.MessagePasserRoot[:], pre.BlockHash[:])
	require.Equal(t, want, pre.Root())
}

func TestGameLocalRead(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewDisputeGameProver(home, testGameCfg, 1)
	pre := testPreimage()
	testGameCfg.Record(home.State(), 7, pre.Root())

	input, err := EncodeGameLocalInput(7, pre)
	require.NoError(t, err)
	got, err := p.LocalStateCommitment(home.Context(), input)
	require.NoError(t, err)
	require.Equal(t, pre.BlockHash, got)
}

func TestGameLocalRead_Unresolved(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewDisputeGameProver(home, testGameCfg, 1)
	pre := testPreimage()

	// Claim present but status never resolved.
	home.State().SetStorage(testGameCfg.Registry, testGameCfg.ClaimSlot(7), pre.Root())
	input, err := EncodeGameLocalInput(7, pre)
	require.NoError(t, err)
	_, err = p.LocalStateCommitment(home.Context(), input)
	require.ErrorIs(t, err, ErrUnknownCommitment)

	// Unknown game index.
	input, err = EncodeGameLocalInput(8, pre)
	require.NoError(t, err)
	_, err = p.LocalStateCommitment(home.Context(), input)
	require.ErrorIs(t, err, ErrUnknownCommitment)
}

func TestGameLocalRead_PreimageMismatch(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewDisputeGameProver(home, testGameCfg, 1)
	pre := testPreimage()
	testGameCfg.Record(home.State(), 7, pre.Root())

	forged := pre
	forged.BlockHash = crypto.Keccak256Hash([]byte("forged block hash"))
	input, err := EncodeGameLocalInput(7, forged)
	require.NoError(t, err)
	_, err = p.LocalStateCommitment(home.Context(), input)
	require.ErrorIs(t, err, ErrPreimageMismatch)
}

func TestGameRemoteVerify(t *testing.T) {
	home := chain.NewChain(homeID)
	pre := testPreimage()
	testGameCfg.Record(home.State(), 7, pre.Root())

	header := home.Seal()
	claimProof, err := home.State().ProveStorage(testGameCfg.Registry, testGameCfg.ClaimSlot(7))
	require.NoError(t, err)
	statusProof, err := home.State().ProveStorage(testGameCfg.Registry, testGameCfg.StatusSlot(7))
	require.NoError(t, err)
	input, err := EncodeGameRemoteInput(header.EncodeRLP(), 7, pre, claimProof, statusProof)
	require.NoError(t, err)

	cp := NewDisputeGameProverCopy(homeID, testGameCfg, 1)
	got, err := cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, header.Hash(), input)
	require.NoError(t, err)
	require.Equal(t, pre.BlockHash, got)

	// Same input against the wrong home commitment.
	_, err = cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, crypto.Keccak256Hash([]byte("x")), input)
	require.ErrorIs(t, err, ErrHeaderMismatch)

	// Forged preimage against the proven claim.
	forged := pre
	forged.StateRoot = crypto.Keccak256Hash([]byte("forged"))
	input, err = EncodeGameRemoteInput(header.EncodeRLP(), 7, forged, claimProof, statusProof)
	require.NoError(t, err)
	_, err = cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, header.Hash(), input)
	require.ErrorIs(t, err, ErrPreimageMismatch)
}
