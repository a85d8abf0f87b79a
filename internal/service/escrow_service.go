package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/internal/escrow"
	"instantsend-core/pkg/apperror"
)

// secretByteLen gives 128 bits of entropy per one-time secret.
const secretByteLen = 16

// EscrowServiceImpl is the facade over address derivation, instruction
// encoding, and the signing pipeline. It holds no state between calls; the
// one-time secret exists only in the returned receipt.
type EscrowServiceImpl struct {
	cfg        escrow.Config
	appBaseURL string
	codec      *escrow.Codec
	chain      ports.ChainRPC
	pipeline   ports.TransactionPipeline
	newSecret  func() (string, error)
	log        zerolog.Logger
}

var _ ports.EscrowService = (*EscrowServiceImpl)(nil)

func NewEscrowService(
	cfg escrow.Config,
	appBaseURL string,
	chain ports.ChainRPC,
	pipeline ports.TransactionPipeline,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		cfg:        cfg,
		appBaseURL: appBaseURL,
		codec:      escrow.NewCodec(cfg),
		chain:      chain,
		pipeline:   pipeline,
		newSecret:  generateSecret,
		log:        log.With().Str("component", "escrow_service").Logger(),
	}
}

func generateSecret() (string, error) {
	buf := make([]byte, secretByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "generate secret", err)
	}
	return base58.Encode(buf), nil
}

// InitializeEscrow locks funds under a freshly generated one-time secret and
// returns the receipt once the transaction confirmed. If anything fails after
// secret generation the secret is discarded with the error; no escrow exists
// without a confirmed transaction.
func (s *EscrowServiceImpl) InitializeEscrow(ctx context.Context, wallet domain.Wallet, req ports.InitializeEscrowRequest) (*ports.EscrowReceipt, error) {
	log := s.log.With().
		Str("op_id", uuid.NewString()).
		Str("token", req.Token.Symbol).
		Logger()

	amountRaw, err := req.Token.ToSmallestUnit(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.ExpirationUnixTime <= 0 {
		return nil, apperror.ErrInvalidParameters("expiration must be a positive unix timestamp")
	}

	if err := s.checkBalance(ctx, wallet, req.Token, amountRaw); err != nil {
		return nil, err
	}

	secret, err := s.newSecret()
	if err != nil {
		return nil, err
	}
	secretHash := escrow.SecretHash(secret)

	escrowAddr, _, err := escrow.DeriveEscrowAddress(escrow.SeedFor(req.Token), secretHash, s.cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	inst, err := s.codec.BuildInitialize(wallet.PublicKey, req.Token, req.Amount, req.ExpirationUnixTime, secretHash, escrowAddr)
	if err != nil {
		return nil, err
	}

	sig, err := s.pipeline.Execute(ctx, wallet, []solana.Instruction{inst}, ports.ExecuteOptions{Simulate: true})
	if err != nil {
		return nil, fmt.Errorf("initialize escrow: %w", err)
	}

	log.Info().
		Str("signature", sig.String()).
		Str("escrow", escrowAddr.String()).
		Msg("escrow initialized")

	return &ports.EscrowReceipt{
		Signature:     sig,
		Secret:        secret,
		EscrowAddress: escrowAddr,
		ShareLink:     domain.BuildRedeemLink(s.appBaseURL, secret, wallet.PublicKey, req.Token.Symbol),
	}, nil
}

// RedeemEscrow claims the escrow addressed by the secret, paying out to the
// signing wallet. A wrong or already-used secret fails fast at the existence
// check, before any transaction is built.
func (s *EscrowServiceImpl) RedeemEscrow(ctx context.Context, wallet domain.Wallet, req ports.RedeemEscrowRequest) (solana.Signature, error) {
	log := s.log.With().
		Str("op_id", uuid.NewString()).
		Str("token", req.Token.Symbol).
		Logger()

	if req.Secret == "" {
		return solana.Signature{}, apperror.ErrInvalidParameters("redemption secret must not be empty")
	}

	secretHash := escrow.SecretHash(req.Secret)
	escrowAddr, _, err := escrow.DeriveEscrowAddress(escrow.SeedFor(req.Token), secretHash, s.cfg.ProgramID)
	if err != nil {
		return solana.Signature{}, err
	}

	exists, err := s.chain.AccountExists(ctx, escrowAddr)
	if err != nil {
		return solana.Signature{}, err
	}
	if !exists {
		return solana.Signature{}, apperror.ErrAccountNotFound(escrowAddr.String())
	}

	inst, err := s.codec.BuildRedeem(wallet.PublicKey, req.Token, req.Secret, escrowAddr)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := s.pipeline.Execute(ctx, wallet, []solana.Instruction{inst}, ports.ExecuteOptions{Simulate: true})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("redeem escrow: %w", err)
	}

	log.Info().
		Str("signature", sig.String()).
		Str("escrow", escrowAddr.String()).
		Msg("escrow redeemed")
	return sig, nil
}

// SendTokens performs a plain transfer to a known recipient, creating missing
// associated token accounts along the way.
func (s *EscrowServiceImpl) SendTokens(ctx context.Context, wallet domain.Wallet, req ports.SendRequest) (solana.Signature, error) {
	log := s.log.With().
		Str("op_id", uuid.NewString()).
		Str("token", req.Token.Symbol).
		Logger()

	amountRaw, err := req.Token.ToSmallestUnit(req.Amount)
	if err != nil {
		return solana.Signature{}, err
	}
	if req.Recipient.IsZero() {
		return solana.Signature{}, apperror.ErrInvalidParameters("recipient must not be empty")
	}

	if err := s.checkBalance(ctx, wallet, req.Token, amountRaw); err != nil {
		return solana.Signature{}, err
	}

	var instructions []solana.Instruction
	if req.Token.Native() {
		instructions = []solana.Instruction{
			system.NewTransferInstruction(amountRaw, wallet.PublicKey, req.Recipient).Build(),
		}
	} else {
		instructions, err = s.splTransferInstructions(ctx, wallet, req, amountRaw)
		if err != nil {
			return solana.Signature{}, err
		}
	}

	sig, err := s.pipeline.Execute(ctx, wallet, instructions, ports.ExecuteOptions{})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send tokens: %w", err)
	}

	log.Info().
		Str("signature", sig.String()).
		Str("recipient", req.Recipient.String()).
		Msg("tokens sent")
	return sig, nil
}

func (s *EscrowServiceImpl) splTransferInstructions(ctx context.Context, wallet domain.Wallet, req ports.SendRequest, amountRaw uint64) ([]solana.Instruction, error) {
	sourceATA, err := escrow.DeriveAssociatedTokenAddress(wallet.PublicKey, req.Token.Mint)
	if err != nil {
		return nil, err
	}
	destATA, err := escrow.DeriveAssociatedTokenAddress(req.Recipient, req.Token.Mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	exists, err := s.chain.AccountExists(ctx, destATA)
	if err != nil {
		return nil, err
	}
	if !exists {
		// The sender funds the recipient's token account creation.
		create, err := associatedtokenaccount.NewCreateInstruction(wallet.PublicKey, req.Recipient, req.Token.Mint).ValidateAndBuild()
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "build create token account instruction", err)
		}
		instructions = append(instructions, create)
	}

	transfer := token.NewTransferInstruction(amountRaw, sourceATA, destATA, wallet.PublicKey, nil).Build()
	return append(instructions, transfer), nil
}

// checkBalance rejects a spend that exceeds the current balance before any
// transaction is built. A missing token account counts as a zero balance.
func (s *EscrowServiceImpl) checkBalance(ctx context.Context, wallet domain.Wallet, t domain.Token, amountRaw uint64) error {
	if t.Native() {
		lamports, err := s.chain.LamportBalance(ctx, wallet.PublicKey)
		if err != nil {
			return err
		}
		if lamports < amountRaw {
			return apperror.ErrInsufficientBalance(t.Symbol)
		}
		return nil
	}

	ata, err := escrow.DeriveAssociatedTokenAddress(wallet.PublicKey, t.Mint)
	if err != nil {
		return err
	}
	raw, err := s.chain.TokenAccountBalance(ctx, ata)
	if apperror.IsKind(err, apperror.KindAccountNotFound) {
		return apperror.ErrInsufficientBalance(t.Symbol)
	}
	if err != nil {
		return err
	}
	if raw < amountRaw {
		return apperror.ErrInsufficientBalance(t.Symbol)
	}
	return nil
}
