package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"instantsend-core/internal/core/domain"
	"instantsend-core/internal/core/ports"
)

const (
	// priceCacheTTL bounds price staleness. Within the window every caller
	// sees the same snapshot; past it the next caller refreshes for everyone.
	priceCacheTTL = 30 * time.Second

	// fallbackReferencePriceSOL keeps the dollar-denominated default amount
	// usable when the feed is down.
	fallbackReferencePriceSOL = 20
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// PriceServiceImpl is an in-process TTL cache over a PriceSource. State lives
// only in memory; a process restart starts cold.
type PriceServiceImpl struct {
	source   ports.PriceSource
	clock    ports.Clock
	registry []domain.Token
	log      zerolog.Logger

	mu        sync.Mutex
	prices    map[string]decimal.Decimal
	lastFetch time.Time
}

var _ ports.PriceService = (*PriceServiceImpl)(nil)

// NewPriceService creates the cache. A nil clock selects the system clock.
func NewPriceService(source ports.PriceSource, clock ports.Clock, registry []domain.Token, log zerolog.Logger) *PriceServiceImpl {
	if clock == nil {
		clock = systemClock{}
	}
	return &PriceServiceImpl{
		source:   source,
		clock:    clock,
		registry: registry,
		log:      log.With().Str("component", "price_service").Logger(),
	}
}

// GetPrices returns USD prices for the requested symbols. It never fails: on
// a feed outage the cache is refreshed with fallback values (1 for stables, 0
// otherwise) and the fetch timestamp still advances, so a flapping feed is
// retried at most once per TTL window.
func (s *PriceServiceImpl) GetPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.lastFetch.IsZero() || now.Sub(s.lastFetch) > priceCacheTTL {
		s.refreshLocked(ctx, now)
	}

	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = s.prices[symbol]
	}
	return out
}

// refreshLocked replaces the snapshot wholesale. Callers hold s.mu.
func (s *PriceServiceImpl) refreshLocked(ctx context.Context, now time.Time) {
	fresh := make(map[string]decimal.Decimal, len(s.registry))
	for _, t := range s.registry {
		if t.Stable {
			fresh[t.Symbol] = decimal.NewFromInt(1)
		} else {
			fresh[t.Symbol] = decimal.Zero
		}
	}

	symbols := make([]string, 0, len(s.registry))
	for _, t := range s.registry {
		if !t.Stable {
			symbols = append(symbols, t.Symbol)
		}
	}

	fetched, err := s.source.FetchPrices(ctx, symbols)
	if err != nil {
		s.log.Warn().Err(err).Msg("price fetch failed, serving fallback prices")
	} else {
		for symbol, price := range fetched {
			fresh[symbol] = price
		}
	}

	s.prices = fresh
	s.lastFetch = now
}

// DefaultSendAmount suggests roughly one US dollar's worth of the token:
// 1.00 for stables, otherwise 1/price rounded to four decimal places. When no
// price is available a fixed reference price stands in so the suggestion
// stays nonzero.
func (s *PriceServiceImpl) DefaultSendAmount(ctx context.Context, token domain.Token) decimal.Decimal {
	if token.Stable {
		return decimal.NewFromInt(1)
	}

	price := s.GetPrices(ctx, []string{token.Symbol})[token.Symbol]
	if price.Sign() <= 0 {
		price = decimal.NewFromInt(fallbackReferencePriceSOL)
	}
	return decimal.NewFromInt(1).Div(price).Round(4)
}
