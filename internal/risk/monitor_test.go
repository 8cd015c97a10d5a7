package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// emptySource satisfies marketdata.Source with no data so price
// derivation relies on the paper broker's quotes.
type emptySource struct{}

func (emptySource) GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	return nil, nil
}

func (emptySource) GetHistory(ctx context.Context, symbol string, lookback int) ([]contracts.Bar, error) {
	return nil, nil
}

type fixture struct {
	broker  *broker.PaperBroker
	clock   *clock.Fixed
	ledger  *ledger.Ledger
	monitor *Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()
	pb := broker.NewPaperBroker()
	clk := clock.NewFixed(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))

	led, err := ledger.New(clk, log, t.TempDir(), 10*24*time.Hour)
	require.NoError(t, err)

	cfg := config.StrategyConfig{
		StopLossPercent:  0.05,
		FillPollAttempts: 3,
		FillPollInterval: time.Millisecond,
	}

	prices := execution.NewPriceService(pb, emptySource{}, clk, log, time.Hour)
	exec := execution.NewExecutor(pb, prices, led, clk, log, cfg, nil)

	return &fixture{
		broker:  pb,
		clock:   clk,
		ledger:  led,
		monitor: NewMonitor(led, prices, exec, clk, log),
	}
}

func TestStopLossFiresOnBreach(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", 10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 94})

	live, err := f.broker.GetPositions(context.Background())
	require.NoError(t, err)
	f.ledger.RefreshPositions(live)
	f.ledger.SetStopLoss("AAPL", 95)

	f.monitor.Run(context.Background(), nil)

	positions, err := f.broker.GetPositions(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, positions, "AAPL", "position closed on breach")
	assert.True(t, f.ledger.IsTradedToday("AAPL", contracts.OrderSideSell))
}

func TestStopLossDoesNotFireAboveStop(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", 10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 95.01})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)
	f.ledger.SetStopLoss("AAPL", 95)

	f.monitor.Run(context.Background(), nil)

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Contains(t, positions, "AAPL", "position untouched above the stop")
}

func TestStopLossNeverFiresWithoutStoredStop(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", 10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 1})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)

	f.monitor.Run(context.Background(), nil)

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Contains(t, positions, "AAPL")
}

func TestStopLossSkipsShortPositions(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", -10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 1})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)
	f.ledger.SetStopLoss("AAPL", 95)

	f.monitor.Run(context.Background(), nil)

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Contains(t, positions, "AAPL", "short stops are not evaluated")
}

func TestHoldingPeriodClosesLongAndShort(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("LONG", 10)
	f.broker.SetPosition("SHRT", -5)
	f.broker.SetQuote("LONG", contracts.Quote{Last: 100})
	f.broker.SetQuote("SHRT", contracts.Quote{Last: 50})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)

	earnings := map[string]time.Time{
		"LONG": f.clock.Now().AddDate(0, 0, -2),
		"SHRT": f.clock.Now().AddDate(0, 0, -3),
	}

	f.monitor.Run(context.Background(), earnings)

	positions, _ := f.broker.GetPositions(context.Background())
	assert.NotContains(t, positions, "LONG")
	assert.NotContains(t, positions, "SHRT")
	assert.True(t, f.ledger.IsTradedToday("LONG", contracts.OrderSideSell))
	assert.True(t, f.ledger.IsTradedToday("SHRT", contracts.OrderSideBuy))
}

func TestHoldingPeriodWaitsTwoDays(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", 10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 100})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)

	earnings := map[string]time.Time{"AAPL": f.clock.Now().AddDate(0, 0, -1)}
	f.monitor.Run(context.Background(), earnings)

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Contains(t, positions, "AAPL", "one day after earnings is too early")

	f.clock.Advance(24 * time.Hour)
	f.monitor.Run(context.Background(), earnings)

	positions, _ = f.broker.GetPositions(context.Background())
	assert.NotContains(t, positions, "AAPL")
}

func TestHoldingPeriodIgnoresUnknownEarningsDate(t *testing.T) {
	f := newFixture(t)

	f.broker.SetPosition("AAPL", 10)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 100})

	live, _ := f.broker.GetPositions(context.Background())
	f.ledger.RefreshPositions(live)

	f.monitor.Run(context.Background(), map[string]time.Time{})

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Contains(t, positions, "AAPL")
}
