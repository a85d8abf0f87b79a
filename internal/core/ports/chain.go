package ports

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// ConfirmationLevel mirrors the ledger's commitment ladder.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// AtLeast reports whether l satisfies the target level.
func (l ConfirmationLevel) AtLeast(target ConfirmationLevel) bool {
	return l.rank() >= target.rank()
}

func (l ConfirmationLevel) rank() int {
	switch l {
	case ConfirmationProcessed:
		return 1
	case ConfirmationConfirmed:
		return 2
	case ConfirmationFinalized:
		return 3
	default:
		return 0
	}
}

// ChainRPC is the narrow slice of ledger RPC this core consumes.
type ChainRPC interface {
	// LatestBlockhash returns the current network checkpoint transactions must
	// reference to be considered fresh.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// LamportBalance returns the native balance of an account in lamports.
	LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// TokenAccountBalance returns the raw token amount held by a token
	// account. A missing account surfaces as apperror.KindAccountNotFound.
	TokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error)

	// AccountExists reports whether the account has been created on chain.
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)

	// Simulate dry-runs a signed transaction. A program-level failure returns
	// apperror.KindSimulationFailed carrying the program log lines.
	Simulate(ctx context.Context, tx *solana.Transaction) error

	// Submit sends the signed transaction bytes. Exactly one submission per
	// call; no implicit retries.
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// SignatureStatus returns the confirmation level the network currently
	// reports for sig. An empty level means the signature is not yet known.
	SignatureStatus(ctx context.Context, sig solana.Signature) (ConfirmationLevel, error)
}
