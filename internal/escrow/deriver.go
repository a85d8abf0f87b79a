// Package escrow binds this client to the deployed escrow program: address
// derivation and the exact instruction byte layout the program expects. The
// layouts here are a frozen wire contract; changing seeds, discriminators, or
// account order breaks compatibility with already-initialized escrows.
package escrow

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"

	"instantsend-core/internal/core/domain"
	"instantsend-core/pkg/apperror"
)

// Seed selects the escrow address namespace. SOL and SPL escrows live under
// different seeds; initialize and redeem must use the same one or the
// derived addresses diverge.
type Seed string

const (
	SeedSOL Seed = "escrow_sol"
	SeedSPL Seed = "escrow_spl"
)

// SeedFor returns the derivation seed for the token's transfer kind.
func SeedFor(token domain.Token) Seed {
	if token.Native() {
		return SeedSOL
	}
	return SeedSPL
}

// Config carries the program identity every component derives against.
// Constructed once and passed in, so tests can target alternate deployments.
type Config struct {
	ProgramID solana.PublicKey
}

// SecretHash digests the one-time secret. The hash both addresses the escrow
// account and authenticates redemption.
func SecretHash(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// DeriveEscrowAddress computes the program-derived escrow address for a
// secret hash. Pure and deterministic: identical inputs always yield the
// identical address and bump. Derivation fails only if all 256 bump seeds
// land on the curve, which is treated as a fatal configuration error.
func DeriveEscrowAddress(seed Seed, secretHash [32]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte(seed), secretHash[:]},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, 0, apperror.Wrap(apperror.KindInternal, "escrow address derivation exhausted all bump seeds", err)
	}
	return addr, bump, nil
}

// DeriveAssociatedTokenAddress computes the canonical token account address
// for an owner and mint. The owner may be off-curve (the escrow PDA owns its
// own token vault).
func DeriveAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), solana.TokenProgramID.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, apperror.Wrap(apperror.KindInternal, "associated token address derivation failed", err)
	}
	return addr, nil
}
