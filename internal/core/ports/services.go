package ports

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/domain"
)

// Clock abstracts time so TTL behavior is testable without waiting on real
// cache windows.
type Clock interface {
	Now() time.Time
}

// ExecuteOptions controls optional pipeline stages.
type ExecuteOptions struct {
	// Simulate dry-runs the signed transaction before submission and aborts
	// on a program failure, so no fees are spent on a doomed submission.
	Simulate bool
}

// TransactionPipeline assembles, signs, optionally simulates, submits, and
// confirms a transaction built from the given instructions. Once a
// transaction is submitted there is no way to cancel it.
type TransactionPipeline interface {
	Execute(ctx context.Context, wallet domain.Wallet, instructions []solana.Instruction, opts ExecuteOptions) (solana.Signature, error)
}

// PriceSource fetches USD reference prices from an external feed.
type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// --- Service Ports (Business Logic) ---

// EscrowService is the facade over address derivation, instruction encoding,
// and the signing pipeline.
type EscrowService interface {
	InitializeEscrow(ctx context.Context, wallet domain.Wallet, req InitializeEscrowRequest) (*EscrowReceipt, error)
	RedeemEscrow(ctx context.Context, wallet domain.Wallet, req RedeemEscrowRequest) (solana.Signature, error)
	SendTokens(ctx context.Context, wallet domain.Wallet, req SendRequest) (solana.Signature, error)
}

// InitializeEscrowRequest holds validated input for escrow creation. The
// one-time secret is generated inside the service, never supplied.
type InitializeEscrowRequest struct {
	Token              domain.Token
	Amount             decimal.Decimal
	ExpirationUnixTime int64
}

// EscrowReceipt is returned only after the initialize transaction confirmed.
// The secret is the sole redemption credential; the caller turns it into a
// share link and must not log it elsewhere.
type EscrowReceipt struct {
	Signature     solana.Signature
	Secret        string
	EscrowAddress solana.PublicKey
	ShareLink     string
}

// RedeemEscrowRequest holds input for redemption; the secret comes from the
// shared link.
type RedeemEscrowRequest struct {
	Token  domain.Token
	Secret string
}

// SendRequest holds input for a plain (non-escrow) transfer.
type SendRequest struct {
	Token     domain.Token
	Amount    decimal.Decimal
	Recipient solana.PublicKey
}

// BalanceService aggregates balances for the full token registry. The result
// always contains exactly one entry per registry token, in registry order.
type BalanceService interface {
	FetchBalances(ctx context.Context, wallet domain.Wallet) ([]domain.TokenBalance, error)
}

// PriceService is the time-bounded USD price cache. GetPrices never fails:
// on a feed outage it falls back to reference defaults.
type PriceService interface {
	GetPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
	DefaultSendAmount(ctx context.Context, token domain.Token) decimal.Decimal
}
