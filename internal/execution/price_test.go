package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// barSource serves one canned daily close per symbol.
type barSource struct {
	closes map[string]float64
}

func (s *barSource) GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	return nil, nil
}

func (s *barSource) GetHistory(ctx context.Context, symbol string, lookback int) ([]contracts.Bar, error) {
	c, ok := s.closes[symbol]
	if !ok {
		return nil, nil
	}
	return []contracts.Bar{{Date: time.Now(), Close: c}}, nil
}

func newPriceService(pb *broker.PaperBroker, src *barSource, clk clock.Clock) *PriceService {
	return NewPriceService(pb, src, clk, testLogger(), time.Hour)
}

func TestPriceFallbackChain(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	src := &barSource{closes: map[string]float64{"HIST": 42}}
	ctx := context.Background()

	tests := []struct {
		name   string
		symbol string
		quote  *contracts.Quote
		want   float64
	}{
		{"last trade wins", "AAA", &contracts.Quote{Last: 101, Close: 100, Bid: 99, Ask: 100}, 101},
		{"close when no last", "BBB", &contracts.Quote{Close: 100, Bid: 99, Ask: 100}, 100},
		{"bid-ask midpoint", "CCC", &contracts.Quote{Bid: 99, Ask: 101}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := broker.NewPaperBroker()
			pb.SetQuote(tt.symbol, *tt.quote)

			price, err := newPriceService(pb, src, clk).GetPrice(ctx, tt.symbol)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, price, 1e-9)
		})
	}

	t.Run("daily close fallback", func(t *testing.T) {
		pb := broker.NewPaperBroker() // no quote configured
		price, err := newPriceService(pb, src, clk).GetPrice(ctx, "HIST")
		require.NoError(t, err)
		assert.InDelta(t, 42, price, 1e-9)
	})

	t.Run("nothing usable", func(t *testing.T) {
		pb := broker.NewPaperBroker()
		_, err := newPriceService(pb, src, clk).GetPrice(ctx, "NONE")
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	})
}

func TestPriceCachedWithinHour(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	pb := broker.NewPaperBroker()
	pb.SetQuote("AAA", contracts.Quote{Last: 100})

	svc := newPriceService(pb, &barSource{}, clk)
	ctx := context.Background()

	price, err := svc.GetPrice(ctx, "AAA")
	require.NoError(t, err)
	assert.InDelta(t, 100, price, 1e-9)

	// The live quote moves, but the cached value holds for the hour.
	pb.SetQuote("AAA", contracts.Quote{Last: 120})
	clk.Advance(30 * time.Minute)

	price, err = svc.GetPrice(ctx, "AAA")
	require.NoError(t, err)
	assert.InDelta(t, 100, price, 1e-9)

	// A new hour bucket picks up the fresh quote.
	clk.Advance(31 * time.Minute)
	price, err = svc.GetPrice(ctx, "AAA")
	require.NoError(t, err)
	assert.InDelta(t, 120, price, 1e-9)
}

func TestPriceInvalidate(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	pb := broker.NewPaperBroker()
	pb.SetQuote("AAA", contracts.Quote{Last: 100})

	svc := newPriceService(pb, &barSource{}, clk)
	ctx := context.Background()

	_, err := svc.GetPrice(ctx, "AAA")
	require.NoError(t, err)

	pb.SetQuote("AAA", contracts.Quote{Last: 110})
	svc.Invalidate("AAA")

	price, err := svc.GetPrice(ctx, "AAA")
	require.NoError(t, err)
	assert.InDelta(t, 110, price, 1e-9)
}
