package chain

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/pkg/apperror"
)

// fakeChain scripts ChainRPC responses and records interactions.
type fakeChain struct {
	blockhash    solana.Hash
	blockhashErr error

	simulateErr   error
	simulateCalls int

	submitSig   solana.Signature
	submitErr   error
	submitCalls int
	submittedTx *solana.Transaction

	statuses    []ports.ConfirmationLevel
	statusCalls int
}

func (f *fakeChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return f.blockhash, f.blockhashErr
}

func (f *fakeChain) LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) TokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	return false, nil
}

func (f *fakeChain) Simulate(ctx context.Context, tx *solana.Transaction) error {
	f.simulateCalls++
	return f.simulateErr
}

func (f *fakeChain) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.submitCalls++
	f.submittedTx = tx
	return f.submitSig, f.submitErr
}

func (f *fakeChain) SignatureStatus(ctx context.Context, sig solana.Signature) (ports.ConfirmationLevel, error) {
	i := f.statusCalls
	f.statusCalls++
	if i >= len(f.statuses) {
		if len(f.statuses) == 0 {
			return "", nil
		}
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[i], nil
}

func testWallet(t *testing.T) domain.Wallet {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := domain.NewWallet(priv)
	require.NoError(t, err)
	return w
}

func testInstruction(payer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true}},
		[]byte{1, 2, 3},
	)
}

func newTestPipeline(f *fakeChain) *Pipeline {
	p := NewPipeline(f, ports.ConfirmationConfirmed, time.Second, zerolog.Nop())
	p.pollInterval = time.Millisecond
	return p
}

func TestPipeline_Execute_SignsAndConfirms(t *testing.T) {
	w := testWallet(t)
	var wantSig solana.Signature
	wantSig[0] = 7

	f := &fakeChain{
		submitSig: wantSig,
		statuses:  []ports.ConfirmationLevel{"", ports.ConfirmationConfirmed},
	}
	p := newTestPipeline(f)

	sig, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, wantSig, sig)
	assert.Equal(t, 0, f.simulateCalls, "simulation must be opt-in")
	assert.Equal(t, 1, f.submitCalls)

	// The submitted transaction carries exactly one valid detached signature.
	require.NotNil(t, f.submittedTx)
	require.Len(t, f.submittedTx.Signatures, 1)
	msg, err := f.submittedTx.Message.MarshalBinary()
	require.NoError(t, err)
	txSig := f.submittedTx.Signatures[0]
	assert.True(t, ed25519.Verify(w.PublicKey.Bytes(), msg, txSig[:]))
}

func TestPipeline_Execute_SimulationFailureAborts(t *testing.T) {
	w := testWallet(t)
	f := &fakeChain{
		simulateErr: apperror.ErrSimulationFailed(assert.AnError, []string{"Program log: custom error"}),
	}
	p := newTestPipeline(f)

	_, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{Simulate: true})
	require.Error(t, err)
	assert.Equal(t, apperror.KindSimulationFailed, apperror.KindOf(err))
	assert.Equal(t, []string{"Program log: custom error"}, apperror.ProgramLogs(err))
	assert.Equal(t, 1, f.simulateCalls)
	assert.Equal(t, 0, f.submitCalls, "a failed simulation must prevent submission")
}

func TestPipeline_Execute_SimulatesExactlyOnce(t *testing.T) {
	w := testWallet(t)
	f := &fakeChain{statuses: []ports.ConfirmationLevel{ports.ConfirmationFinalized}}
	p := newTestPipeline(f)

	_, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{Simulate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.simulateCalls)
}

func TestPipeline_Execute_ExpiredBlockhash(t *testing.T) {
	w := testWallet(t)
	f := &fakeChain{submitErr: apperror.ErrTransactionExpired(assert.AnError)}
	p := newTestPipeline(f)

	_, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindTransactionExpired, apperror.KindOf(err))
}

func TestPipeline_Execute_ConfirmationTimeout(t *testing.T) {
	w := testWallet(t)
	f := &fakeChain{statuses: []ports.ConfirmationLevel{""}}
	p := NewPipeline(f, ports.ConfirmationConfirmed, 20*time.Millisecond, zerolog.Nop())
	p.pollInterval = 5 * time.Millisecond

	_, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConfirmationTimeout, apperror.KindOf(err))
	assert.Equal(t, 1, f.submitCalls, "timeout must not trigger a resubmission")
}

func TestPipeline_Execute_ProcessedDoesNotSatisfyConfirmed(t *testing.T) {
	w := testWallet(t)
	f := &fakeChain{
		statuses: []ports.ConfirmationLevel{
			ports.ConfirmationProcessed,
			ports.ConfirmationProcessed,
			ports.ConfirmationConfirmed,
		},
	}
	p := newTestPipeline(f)

	_, err := p.Execute(context.Background(), w, []solana.Instruction{testInstruction(w.PublicKey)}, ports.ExecuteOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.statusCalls, 3)
}

func TestPipeline_Execute_NoInstructions(t *testing.T) {
	w := testWallet(t)
	p := newTestPipeline(&fakeChain{})

	_, err := p.Execute(context.Background(), w, nil, ports.ExecuteOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindInvalidParameters, apperror.KindOf(err))
}
