package service

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/pkg/apperror"
)

// stubChain is an in-memory chain state for service tests. Accounts present
// in tokenBalances exist; everything else reads as not found.
type stubChain struct {
	mu sync.Mutex

	lamports      map[solana.PublicKey]uint64
	lamportsErr   error
	tokenBalances map[solana.PublicKey]uint64
	tokenErr      map[solana.PublicKey]error
	accounts      map[solana.PublicKey]bool
}

func newStubChain() *stubChain {
	return &stubChain{
		lamports:      map[solana.PublicKey]uint64{},
		tokenBalances: map[solana.PublicKey]uint64{},
		tokenErr:      map[solana.PublicKey]error{},
		accounts:      map[solana.PublicKey]bool{},
	}
}

func (s *stubChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (s *stubChain) LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lamportsErr != nil {
		return 0, s.lamportsErr
	}
	return s.lamports[account], nil
}

func (s *stubChain) TokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokenErr[tokenAccount]; err != nil {
		return 0, err
	}
	raw, ok := s.tokenBalances[tokenAccount]
	if !ok {
		return 0, apperror.ErrAccountNotFound(tokenAccount.String())
	}
	return raw, nil
}

func (s *stubChain) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[account], nil
}

func (s *stubChain) Simulate(ctx context.Context, tx *solana.Transaction) error {
	return nil
}

func (s *stubChain) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (s *stubChain) SignatureStatus(ctx context.Context, sig solana.Signature) (ports.ConfirmationLevel, error) {
	return ports.ConfirmationConfirmed, nil
}

type executedCall struct {
	wallet       domain.Wallet
	instructions []solana.Instruction
	opts         ports.ExecuteOptions
}

// stubPipeline records Execute calls instead of touching a network.
type stubPipeline struct {
	mu        sync.Mutex
	calls     []executedCall
	sig       solana.Signature
	err       error
	onExecute func(call executedCall)
}

func (p *stubPipeline) Execute(ctx context.Context, wallet domain.Wallet, instructions []solana.Instruction, opts ports.ExecuteOptions) (solana.Signature, error) {
	p.mu.Lock()
	call := executedCall{wallet: wallet, instructions: instructions, opts: opts}
	p.calls = append(p.calls, call)
	hook := p.onExecute
	p.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return p.sig, p.err
}

func (p *stubPipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// stubPrices serves a fixed price table.
type stubPrices struct {
	prices map[string]decimal.Decimal
}

func (s *stubPrices) GetPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = s.prices[symbol]
	}
	return out
}

func (s *stubPrices) DefaultSendAmount(ctx context.Context, token domain.Token) decimal.Decimal {
	return decimal.NewFromInt(1)
}
