package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/pkg/apperror"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Pipeline drives a transaction through assemble, sign, optional simulate,
// submit, and confirm. Each Execute call fetches a fresh blockhash, so the
// instruction slice can be reused across calls but a built transaction cannot.
type Pipeline struct {
	chain          ports.ChainRPC
	target         ports.ConfirmationLevel
	confirmTimeout time.Duration
	pollInterval   time.Duration
	log            zerolog.Logger
}

// NewPipeline creates a Pipeline that waits for the given confirmation level.
// A zero timeout selects the 60s default.
func NewPipeline(chainRPC ports.ChainRPC, target ports.ConfirmationLevel, confirmTimeout time.Duration, log zerolog.Logger) *Pipeline {
	if target == "" {
		target = ports.ConfirmationConfirmed
	}
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	return &Pipeline{
		chain:          chainRPC,
		target:         target,
		confirmTimeout: confirmTimeout,
		pollInterval:   defaultPollInterval,
		log:            log.With().Str("component", "tx_pipeline").Logger(),
	}
}

func (p *Pipeline) Execute(ctx context.Context, wallet domain.Wallet, instructions []solana.Instruction, opts ports.ExecuteOptions) (solana.Signature, error) {
	if len(instructions) == 0 {
		return solana.Signature{}, apperror.ErrInvalidParameters("no instructions to execute")
	}

	blockhash, err := p.chain.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(wallet.PublicKey))
	if err != nil {
		return solana.Signature{}, apperror.Wrap(apperror.KindInternal, "assemble transaction", err)
	}

	// Detached signing: serialize the message and sign the bytes directly,
	// so the private key never leaves the caller-held Wallet value.
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, apperror.Wrap(apperror.KindInternal, "serialize transaction message", err)
	}
	sig, err := wallet.PrivateKey.Sign(msg)
	if err != nil {
		return solana.Signature{}, apperror.Wrap(apperror.KindInternal, "sign transaction", err)
	}
	tx.Signatures = []solana.Signature{sig}

	if opts.Simulate {
		if err := p.chain.Simulate(ctx, tx); err != nil {
			p.log.Warn().Err(err).Strs("program_logs", apperror.ProgramLogs(err)).Msg("aborting before submission")
			return solana.Signature{}, err
		}
	}

	txSig, err := p.chain.Submit(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	p.log.Debug().Str("signature", txSig.String()).Msg("transaction submitted")

	if err := p.awaitConfirmation(ctx, txSig); err != nil {
		return solana.Signature{}, err
	}
	return txSig, nil
}

func (p *Pipeline) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.NewTimer(p.confirmTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.pollInterval)
	defer tick.Stop()

	for {
		level, err := p.chain.SignatureStatus(ctx, sig)
		if err != nil {
			return err
		}
		if level.AtLeast(p.target) {
			p.log.Debug().Str("signature", sig.String()).Str("level", string(level)).Msg("transaction confirmed")
			return nil
		}

		select {
		case <-ctx.Done():
			return apperror.Wrap(apperror.KindInternal, "confirmation cancelled", ctx.Err())
		case <-deadline.C:
			return apperror.ErrConfirmationTimeout(p.confirmTimeout)
		case <-tick.C:
		}
	}
}
