// Package pricefeed adapts the Binance spot ticker endpoint to the
// ports.PriceSource interface.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/ports"
	"instantsend-core/pkg/apperror"
)

const (
	// DefaultURL is the public spot ticker endpoint; no API key required.
	DefaultURL     = "https://api.binance.com/api/v3/ticker/price"
	defaultTimeout = 10 * time.Second
)

// defaultPairs maps registry symbols to the USDT pairs the feed quotes them
// under. Symbols without a pair (stables pinned to 1) are simply not fetched.
var defaultPairs = map[string]string{
	"SOL":  "SOLUSDT",
	"BONK": "BONKUSDT",
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// BinanceClient fetches USD reference prices from the Binance ticker feed.
type BinanceClient struct {
	url    string
	client *http.Client
	pairs  map[string]string
	log    zerolog.Logger
}

var _ ports.PriceSource = (*BinanceClient)(nil)

func NewBinanceClient(url string, timeout time.Duration, log zerolog.Logger) *BinanceClient {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &BinanceClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		pairs:  defaultPairs,
		log:    log.With().Str("component", "pricefeed").Logger(),
	}
}

// FetchPrices returns USD prices for the requested symbols. Symbols the feed
// has no pair for are omitted from the result rather than reported as errors.
func (c *BinanceClient) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, apperror.ErrPriceFetchFailed(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperror.ErrPriceFetchFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.ErrPriceFetchFailed(fmt.Errorf("ticker endpoint returned status %d", resp.StatusCode))
	}

	var tickers []tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, apperror.ErrPriceFetchFailed(err)
	}

	byPair := make(map[string]decimal.Decimal, len(tickers))
	for _, tk := range tickers {
		price, err := decimal.NewFromString(tk.Price)
		if err != nil {
			c.log.Warn().Str("pair", tk.Symbol).Str("price", tk.Price).Msg("skipping unparseable ticker price")
			continue
		}
		byPair[tk.Symbol] = price
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		pair, ok := c.pairs[symbol]
		if !ok {
			continue
		}
		if price, ok := byPair[pair]; ok {
			prices[symbol] = price
		}
	}
	return prices, nil
}
