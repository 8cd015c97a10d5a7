package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/marketdata"
	"github.com/wonny/reversal/pkg/logger"
)

// ErrPriceUnavailable indicates no source could produce a positive
// reference price, so no order may be submitted.
var ErrPriceUnavailable = errors.New("no usable price available")

// cachedPrice is one hour-bucketed cache entry.
type cachedPrice struct {
	price    float64
	cachedAt time.Time
}

// PriceService resolves a trade reference price with an ordered
// fallback chain and caches results per (symbol, date, hour). Two
// calls within the same wall-clock hour return the same price even if
// the market has moved; callers accept that staleness in exchange for
// fewer quote requests.
type PriceService struct {
	mu     sync.Mutex
	broker broker.Broker
	source marketdata.Source
	clock  clock.Clock
	logger *logger.Logger
	ttl    time.Duration
	cache  map[string]cachedPrice
}

// NewPriceService creates a price service with an hour-keyed cache.
func NewPriceService(brk broker.Broker, source marketdata.Source, clk clock.Clock, log *logger.Logger, ttl time.Duration) *PriceService {
	return &PriceService{
		broker: brk,
		source: source,
		clock:  clk,
		logger: log,
		ttl:    ttl,
		cache:  make(map[string]cachedPrice),
	}
}

// GetPrice returns a positive reference price for symbol. Fallback
// order: live last trade, live close, bid/ask midpoint, last daily
// close from the market-data source.
func (p *PriceService) GetPrice(ctx context.Context, symbol string) (float64, error) {
	now := p.clock.Now()
	key := fmt.Sprintf("%s_%s_%02d", symbol, now.Format("20060102"), now.Hour())

	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && now.Sub(entry.cachedAt) < p.ttl {
		p.mu.Unlock()
		return entry.price, nil
	}
	p.mu.Unlock()

	price, err := p.derive(ctx, symbol)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.cache[key] = cachedPrice{price: price, cachedAt: now}
	p.mu.Unlock()

	return price, nil
}

// derive walks the fallback chain, stopping at the first positive value.
func (p *PriceService) derive(ctx context.Context, symbol string) (float64, error) {
	quote, err := p.broker.GetQuote(ctx, symbol)
	if err != nil {
		p.logger.WithError(err).WithField("symbol", symbol).Debug("Quote unavailable, trying daily close")
	} else {
		if quote.Last > 0 {
			return quote.Last, nil
		}
		if quote.Close > 0 {
			return quote.Close, nil
		}
		if quote.Bid > 0 && quote.Ask > 0 {
			return (quote.Bid + quote.Ask) / 2, nil
		}
	}

	bars, err := p.source.GetHistory(ctx, symbol, 1)
	if err == nil && len(bars) > 0 && bars[len(bars)-1].Close > 0 {
		return bars[len(bars)-1].Close, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

// Invalidate drops any cached price for symbol in the current hour.
func (p *PriceService) Invalidate(symbol string) {
	now := p.clock.Now()
	key := fmt.Sprintf("%s_%s_%02d", symbol, now.Format("20060102"), now.Hour())

	p.mu.Lock()
	delete(p.cache, key)
	p.mu.Unlock()
}
