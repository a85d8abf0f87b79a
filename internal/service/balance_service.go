package service

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/internal/escrow"
	"instantsend-core/pkg/apperror"
)

// BalanceServiceImpl aggregates balances for every registry token
// concurrently. A failure reading one token never hides the others.
type BalanceServiceImpl struct {
	chain    ports.ChainRPC
	pipeline ports.TransactionPipeline
	prices   ports.PriceService
	registry []domain.Token
	log      zerolog.Logger
}

var _ ports.BalanceService = (*BalanceServiceImpl)(nil)

func NewBalanceService(
	chain ports.ChainRPC,
	pipeline ports.TransactionPipeline,
	prices ports.PriceService,
	registry []domain.Token,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		chain:    chain,
		pipeline: pipeline,
		prices:   prices,
		registry: registry,
		log:      log.With().Str("component", "balance_service").Logger(),
	}
}

// FetchBalances reads all registry token balances in parallel and merges in
// cached USD prices. The result has exactly one entry per registry token, in
// registry order; tokens that could not be read report a zero balance.
func (s *BalanceServiceImpl) FetchBalances(ctx context.Context, wallet domain.Wallet) ([]domain.TokenBalance, error) {
	results := make([]domain.TokenBalance, len(s.registry))

	var wg sync.WaitGroup
	for i, token := range s.registry {
		wg.Add(1)
		go func(i int, token domain.Token) {
			defer wg.Done()
			balance, err := s.tokenBalance(ctx, wallet, token)
			if err != nil {
				s.log.Warn().Err(err).Str("token", token.Symbol).Msg("balance read failed, reporting zero")
				balance = decimal.Zero
			}
			results[i] = domain.TokenBalance{Token: token, Balance: balance}
		}(i, token)
	}
	wg.Wait()

	symbols := make([]string, len(results))
	for i := range results {
		symbols[i] = results[i].Symbol
	}
	prices := s.prices.GetPrices(ctx, symbols)
	for i := range results {
		results[i].USDPrice = prices[results[i].Symbol]
	}
	return results, nil
}

func (s *BalanceServiceImpl) tokenBalance(ctx context.Context, wallet domain.Wallet, token domain.Token) (decimal.Decimal, error) {
	if token.Native() {
		lamports, err := s.chain.LamportBalance(ctx, wallet.PublicKey)
		if err != nil {
			return decimal.Zero, err
		}
		return token.FromSmallestUnit(lamports), nil
	}

	ata, err := escrow.DeriveAssociatedTokenAddress(wallet.PublicKey, token.Mint)
	if err != nil {
		return decimal.Zero, err
	}

	raw, err := s.chain.TokenAccountBalance(ctx, ata)
	if apperror.IsKind(err, apperror.KindAccountNotFound) {
		// First touch of this token: create the associated token account so
		// later transfers have a destination, then read again.
		if err := s.provisionTokenAccount(ctx, wallet, token); err != nil {
			return decimal.Zero, err
		}
		raw, err = s.chain.TokenAccountBalance(ctx, ata)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return token.FromSmallestUnit(raw), nil
}

func (s *BalanceServiceImpl) provisionTokenAccount(ctx context.Context, wallet domain.Wallet, token domain.Token) error {
	s.log.Info().Str("token", token.Symbol).Str("owner", wallet.PublicKey.String()).Msg("creating associated token account")

	inst, err := associatedtokenaccount.NewCreateInstruction(wallet.PublicKey, wallet.PublicKey, token.Mint).ValidateAndBuild()
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "build create token account instruction", err)
	}
	_, err = s.pipeline.Execute(ctx, wallet, []solana.Instruction{inst}, ports.ExecuteOptions{})
	return err
}
