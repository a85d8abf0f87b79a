package domain

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"instantsend-core/pkg/apperror"
)

// Token describes one entry of the fixed token registry.
// A zero Mint means the chain's native asset (SOL).
type Token struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
	Stable   bool // pegged 1:1 to USD
}

// Native reports whether the token is the chain's native asset.
func (t Token) Native() bool {
	return t.Mint.IsZero()
}

// The on-chain payload carries amounts as int64, so that is the hard ceiling.
var maxSmallestUnit = decimal.NewFromInt(math.MaxInt64)

// ToSmallestUnit converts a human-unit amount to the token's smallest unit,
// rounding half away from zero. The same conversion is used at instruction
// build time and at balance pre-check time so the two can never disagree.
func (t Token) ToSmallestUnit(amount decimal.Decimal) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, apperror.ErrInvalidParameters("amount must be positive")
	}
	scaled := amount.Shift(int32(t.Decimals)).Round(0)
	if scaled.Cmp(maxSmallestUnit) > 0 {
		return 0, apperror.ErrInvalidParameters("amount exceeds the representable range")
	}
	return uint64(scaled.IntPart()), nil
}

// FromSmallestUnit converts a raw on-chain amount back to human units.
func (t Token) FromSmallestUnit(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0).Shift(-int32(t.Decimals))
}

// TokenBalance is a registry token with its current balance and, once prices
// are merged in, its USD reference price. Recomputed on every aggregation
// call, never persisted.
type TokenBalance struct {
	Token
	Balance  decimal.Decimal
	USDPrice decimal.Decimal
}

// USDValue returns the balance valued at the merged reference price.
func (b TokenBalance) USDValue() decimal.Decimal {
	return b.Balance.Mul(b.USDPrice)
}

// DefaultRegistry is the static token registry. Immutable at runtime; the
// aggregator always returns exactly one entry per token listed here.
var DefaultRegistry = []Token{
	{Symbol: "SOL", Decimals: 9},
	{
		Symbol:   "USDC",
		Mint:     solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
		Decimals: 6,
		Stable:   true,
	},
	{
		Symbol:   "BONK",
		Mint:     solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"),
		Decimals: 6,
	},
}

// FindToken looks a token up by symbol in the given registry.
func FindToken(registry []Token, symbol string) (Token, bool) {
	for _, t := range registry {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}
