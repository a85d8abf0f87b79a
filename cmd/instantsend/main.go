// Command instantsend is a thin CLI over the escrow client: inspect balances,
// send tokens, and create or redeem one-time-secret escrow links.
//
// The signing key is read from ISC_WALLET_KEY (base58) and never written
// anywhere by this program.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"instantsend-core/config"
	"instantsend-core/internal/adapter/chain"
	"instantsend-core/internal/adapter/pricefeed"
	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
	"instantsend-core/internal/escrow"
	"instantsend-core/internal/service"
	"instantsend-core/pkg/logger"
)

const walletKeyEnv = "ISC_WALLET_KEY"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch args[0] {
	case "balances":
		return app.balances(ctx)
	case "send":
		return app.send(ctx, args[1:])
	case "escrow":
		return app.createEscrow(ctx, args[1:])
	case "redeem":
		return app.redeem(ctx, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: instantsend <command> [flags]

commands:
  balances                           show balances for all registry tokens
  send    -token SYM -to PUBKEY [-amount N]   plain transfer
  escrow  -token SYM [-amount N] [-expires-in DUR]   lock funds behind a share link
  redeem  -link URL | -secret S -token SYM    claim an escrow`)
}

type app struct {
	log      zerolog.Logger
	wallet   domain.Wallet
	escrows  ports.EscrowService
	balance  ports.BalanceService
	prices   ports.PriceService
	registry []domain.Token
}

func newApp(cfg *config.Config) (*app, error) {
	log := loggerFromConfig(cfg)

	key := os.Getenv(walletKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", walletKeyEnv)
	}
	wallet, err := domain.WalletFromBase58(key)
	if err != nil {
		return nil, err
	}

	programID, err := cfg.Escrow.ProgramPublicKey()
	if err != nil {
		return nil, err
	}

	level := ports.ConfirmationLevel(cfg.RPC.Commitment)
	chainClient := chain.NewClient(cfg.RPC.Endpoint, level, log)
	pipeline := chain.NewPipeline(chainClient, level, cfg.Escrow.ConfirmTimeout, log)
	feed := pricefeed.NewBinanceClient(cfg.PriceFeed.URL, cfg.PriceFeed.Timeout, log)
	prices := service.NewPriceService(feed, nil, domain.DefaultRegistry, log)

	return &app{
		log:      log,
		wallet:   wallet,
		escrows:  service.NewEscrowService(escrow.Config{ProgramID: programID}, cfg.Escrow.AppBaseURL, chainClient, pipeline, log),
		balance:  service.NewBalanceService(chainClient, pipeline, prices, domain.DefaultRegistry, log),
		prices:   prices,
		registry: domain.DefaultRegistry,
	}, nil
}

func loggerFromConfig(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.Log.Level, cfg.Log.Pretty)
}

func (a *app) balances(ctx context.Context) error {
	balances, err := a.balance.FetchBalances(ctx, a.wallet)
	if err != nil {
		return err
	}
	for _, b := range balances {
		fmt.Printf("%-6s %20s  $%s\n", b.Symbol, b.Balance.String(), b.USDValue().StringFixed(2))
	}
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	symbol := fs.String("token", "SOL", "token symbol")
	amount := fs.String("amount", "", "amount in human units (default: about one dollar's worth)")
	to := fs.String("to", "", "recipient public key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, recipient, err := a.resolveTokenAndRecipient(*symbol, *to)
	if err != nil {
		return err
	}
	amt, err := a.resolveAmount(ctx, token, *amount)
	if err != nil {
		return err
	}

	sig, err := a.escrows.SendTokens(ctx, a.wallet, ports.SendRequest{
		Token:     token,
		Amount:    amt,
		Recipient: recipient,
	})
	if err != nil {
		return err
	}
	fmt.Printf("sent %s %s to %s\nsignature: %s\n", amt, token.Symbol, recipient, sig)
	return nil
}

func (a *app) createEscrow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("escrow", flag.ContinueOnError)
	symbol := fs.String("token", "SOL", "token symbol")
	amount := fs.String("amount", "", "amount in human units (default: about one dollar's worth)")
	expiresIn := fs.Duration("expires-in", 24*time.Hour, "time until the sender may reclaim")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, ok := domain.FindToken(a.registry, *symbol)
	if !ok {
		return fmt.Errorf("unknown token %q", *symbol)
	}
	amt, err := a.resolveAmount(ctx, token, *amount)
	if err != nil {
		return err
	}

	receipt, err := a.escrows.InitializeEscrow(ctx, a.wallet, ports.InitializeEscrowRequest{
		Token:              token,
		Amount:             amt,
		ExpirationUnixTime: time.Now().Add(*expiresIn).Unix(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("escrow account: %s\nsignature: %s\nshare this link (it is the only way to claim the funds):\n%s\n",
		receipt.EscrowAddress, receipt.Signature, receipt.ShareLink)
	return nil
}

func (a *app) redeem(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("redeem", flag.ContinueOnError)
	link := fs.String("link", "", "full share link")
	secret := fs.String("secret", "", "bare one-time secret (requires -token)")
	symbol := fs.String("token", "", "token symbol, when redeeming by bare secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		tokenSymbol string
		secretValue string
	)
	switch {
	case *link != "":
		parsed, err := domain.ParseRedeemLink(*link)
		if err != nil {
			return err
		}
		tokenSymbol, secretValue = parsed.Symbol, parsed.Secret
	case *secret != "" && *symbol != "":
		tokenSymbol, secretValue = *symbol, *secret
	default:
		return fmt.Errorf("redeem needs -link, or -secret together with -token")
	}

	token, ok := domain.FindToken(a.registry, tokenSymbol)
	if !ok {
		return fmt.Errorf("unknown token %q", tokenSymbol)
	}

	sig, err := a.escrows.RedeemEscrow(ctx, a.wallet, ports.RedeemEscrowRequest{
		Token:  token,
		Secret: secretValue,
	})
	if err != nil {
		return err
	}
	fmt.Printf("redeemed %s escrow\nsignature: %s\n", token.Symbol, sig)
	return nil
}

func (a *app) resolveTokenAndRecipient(symbol, to string) (domain.Token, solana.PublicKey, error) {
	token, ok := domain.FindToken(a.registry, symbol)
	if !ok {
		return domain.Token{}, solana.PublicKey{}, fmt.Errorf("unknown token %q", symbol)
	}
	if to == "" {
		return domain.Token{}, solana.PublicKey{}, fmt.Errorf("-to is required")
	}
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return domain.Token{}, solana.PublicKey{}, fmt.Errorf("invalid recipient: %w", err)
	}
	return token, recipient, nil
}

func (a *app) resolveAmount(ctx context.Context, token domain.Token, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return a.prices.DefaultSendAmount(ctx, token), nil
	}
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amt, nil
}
