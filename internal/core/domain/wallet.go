package domain

import (
	"github.com/gagliardetto/solana-go"

	"instantsend-core/pkg/apperror"
)

// Wallet is the external key-pair this core signs with. The core borrows the
// key material for the duration of a signing call; it never creates, stores,
// or logs it.
type Wallet struct {
	PublicKey  solana.PublicKey
	PrivateKey solana.PrivateKey
}

// NewWallet builds a Wallet from an ed25519 private key.
func NewWallet(priv solana.PrivateKey) (Wallet, error) {
	if len(priv) != 64 {
		return Wallet{}, apperror.ErrInvalidParameters("private key must be 64 bytes")
	}
	return Wallet{PublicKey: priv.PublicKey(), PrivateKey: priv}, nil
}

// WalletFromBase58 builds a Wallet from a base58-encoded private key.
func WalletFromBase58(key string) (Wallet, error) {
	priv, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return Wallet{}, apperror.Wrap(apperror.KindInvalidParameters, "invalid private key", err)
	}
	return NewWallet(priv)
}
