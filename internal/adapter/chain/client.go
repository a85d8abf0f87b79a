// Package chain adapts the ledger RPC to the narrow ports.ChainRPC surface
// this core consumes.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"instantsend-core/internal/core/ports"
	"instantsend-core/pkg/apperror"
)

// Client implements ports.ChainRPC over a JSON-RPC endpoint.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	log        zerolog.Logger
}

// NewClient creates a Client against the given RPC endpoint.
func NewClient(endpoint string, level ports.ConfirmationLevel, log zerolog.Logger) *Client {
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: toCommitment(level),
		log:        log.With().Str("component", "chain_rpc").Logger(),
	}
}

func toCommitment(level ports.ConfirmationLevel) rpc.CommitmentType {
	switch level {
	case ports.ConfirmationProcessed:
		return rpc.CommitmentProcessed
	case ports.ConfirmationFinalized:
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, apperror.Wrap(apperror.KindInternal, "get latest blockhash", err)
	}
	return out.Value.Blockhash, nil
}

func (c *Client) LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "get balance", err)
	}
	return out.Value, nil
}

func (c *Client) TokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, c.commitment)
	if err != nil {
		if isNotFound(err) {
			return 0, apperror.ErrAccountNotFound(tokenAccount.String())
		}
		return 0, apperror.Wrap(apperror.KindInternal, "get token account balance", err)
	}
	raw, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "parse token amount", err)
	}
	return raw, nil
}

func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, apperror.Wrap(apperror.KindInternal, "get account info", err)
	}
	return true, nil
}

func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) error {
	out, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "simulate transaction", err)
	}
	if out.Value.Err != nil {
		c.log.Debug().Interface("sim_err", out.Value.Err).Msg("simulation reported a program error")
		return apperror.ErrSimulationFailed(fmt.Errorf("%v", out.Value.Err), out.Value.Logs)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	// The pipeline already simulated when it wanted to; skip the node's
	// preflight so exactly one simulation happens per call.
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		if isBlockhashExpired(err) {
			return solana.Signature{}, apperror.ErrTransactionExpired(err)
		}
		return solana.Signature{}, apperror.Wrap(apperror.KindInternal, "send transaction", err)
	}
	return sig, nil
}

func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (ports.ConfirmationLevel, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "get signature status", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return "", nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return "", apperror.New(apperror.KindInternal, fmt.Sprintf("transaction %s failed on chain: %v", sig, st.Err))
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusProcessed:
		return ports.ConfirmationProcessed, nil
	case rpc.ConfirmationStatusConfirmed:
		return ports.ConfirmationConfirmed, nil
	case rpc.ConfirmationStatusFinalized:
		return ports.ConfirmationFinalized, nil
	default:
		return "", nil
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, rpc.ErrNotFound) ||
		strings.Contains(err.Error(), "could not find account")
}

func isBlockhashExpired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Blockhash not found") ||
		strings.Contains(msg, "BlockhashNotFound")
}
