package prover

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openintentsframework/stateproofs/chain"
	"github.com/openintentsframework/stateproofs/core/types"
	"github.com/openintentsframework/stateproofs/crypto"
)

func originHash(n uint64) types.Hash {
	return crypto.Keccak256Hash([]byte{byte(n)}, []byte("origin block"))
}

func TestBufferLocalRead(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewBufferProver(home, testBufferCfg, 1)

	testBufferCfg.Push(home.State(), 100, originHash(100))

	input, err := EncodeBufferLocalInput(100)
	require.NoError(t, err)
	got, err := p.LocalStateCommitment(home.Context(), input)
	require.NoError(t, err)
	require.Equal(t, originHash(100), got)
}

func TestBufferLocalRead_UnknownNumber(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewBufferProver(home, testBufferCfg, 1)
	testBufferCfg.Push(home.State(), 100, originHash(100))

	input, err := EncodeBufferLocalInput(99)
	require.NoError(t, err)
	_, err = p.LocalStateCommitment(home.Context(), input)
	require.ErrorIs(t, err, ErrUnknownCommitment)
}

func TestBufferLocalRead_Evicted(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewBufferProver(home, testBufferCfg, 1)

	// 100 and 100+Size share a buffer index; the later write evicts.
	testBufferCfg.Push(home.State(), 100, originHash(100))
	testBufferCfg.Push(home.State(), 100+testBufferCfg.Size, originHash(100+testBufferCfg.Size))

	input, err := EncodeBufferLocalInput(100)
	require.NoError(t, err)
	_, err = p.LocalStateCommitment(home.Context(), input)
	require.ErrorIs(t, err, ErrUnknownCommitment)

	input, err = EncodeBufferLocalInput(100 + testBufferCfg.Size)
	require.NoError(t, err)
	got, err := p.LocalStateCommitment(home.Context(), input)
	require.NoError(t, err)
	require.Equal(t, originHash(100+testBufferCfg.Size), got)
}

func TestBufferLocalRead_MalformedInput(t *testing.T) {
	home := chain.NewChain(homeID)
	p := NewBufferProver(home, testBufferCfg, 1)
	_, err := p.LocalStateCommitment(home.Context(), []byte{0xff})
	require.ErrorIs(t, err, ErrInputEncoding)
}

// bufferRemoteProof pushes an entry, seals the home chain and assembles the
// remote verification input for number.
func bufferRemoteProof(t *testing.T, home *chain.Chain, number uint64) (types.Hash, []byte) {
	t.Helper()
	header := home.Seal()
	hashProof, err := home.State().ProveStorage(testBufferCfg.Account, testBufferCfg.HashSlot(number))
	require.NoError(t, err)
	numberProof, err := home.State().ProveStorage(testBufferCfg.Account, testBufferCfg.NumberSlot(number))
	require.NoError(t, err)
	input, err := EncodeBufferRemoteInput(header.EncodeRLP(), number, hashProof, numberProof)
	require.NoError(t, err)
	return header.Hash(), input
}

func TestBufferRemoteVerify(t *testing.T) {
	home := chain.NewChain(homeID)
	testBufferCfg.Push(home.State(), 100, originHash(100))
	commitment, input := bufferRemoteProof(t, home, 100)

	cp := NewBufferProverCopy(homeID, testBufferCfg, 1)
	got, err := cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, commitment, input)
	require.NoError(t, err)
	require.Equal(t, originHash(100), got)
}

func TestBufferRemoteVerify_WrongCommitment(t *testing.T) {
	home := chain.NewChain(homeID)
	testBufferCfg.Push(home.State(), 100, originHash(100))
	_, input := bufferRemoteProof(t, home, 100)

	cp := NewBufferProverCopy(homeID, testBufferCfg, 1)
	_, err := cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, crypto.Keccak256Hash([]byte("x")), input)
	require.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestBufferRemoteVerify_Evicted(t *testing.T) {
	home := chain.NewChain(homeID)
	n := uint64(100)
	testBufferCfg.Push(home.State(), n, originHash(n))
	testBufferCfg.Push(home.State(), n+testBufferCfg.Size, originHash(n+testBufferCfg.Size))
	commitment, input := bufferRemoteProof(t, home, n)

	cp := NewBufferProverCopy(homeID, testBufferCfg, 1)
	_, err := cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, commitment, input)
	require.ErrorIs(t, err, ErrUnknownCommitment)
}

func TestBufferRemoteVerify_NeverRecorded(t *testing.T) {
	home := chain.NewChain(homeID)
	testBufferCfg.Push(home.State(), 100, originHash(100))
	commitment, input := bufferRemoteProof(t, home, 31) // different index, never written

	cp := NewBufferProverCopy(homeID, testBufferCfg, 1)
	_, err := cp.VerifyRemoteStateCommitment(chain.Context{Chain: awayID}, commitment, input)
	require.ErrorIs(t, err, ErrUnknownCommitment)
}
