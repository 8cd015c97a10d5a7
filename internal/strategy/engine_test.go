package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/reversal/internal/allocation"
	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/internal/risk"
	"github.com/wonny/reversal/internal/selection"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// stubCalendar serves a fixed event list.
type stubCalendar struct {
	events []contracts.EarningsEvent
}

func (s *stubCalendar) Current(ctx context.Context) ([]contracts.EarningsEvent, error) {
	return s.events, nil
}

// stubSource serves canned history per symbol.
type stubSource struct {
	history map[string][]contracts.Bar
}

func (s *stubSource) GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	return nil, nil
}

func (s *stubSource) GetHistory(ctx context.Context, symbol string, lookback int) ([]contracts.Bar, error) {
	return s.history[symbol], nil
}

type fixture struct {
	engine *Engine
	broker *broker.PaperBroker
	ledger *ledger.Ledger
	clock  *clock.Fixed
}

func strategyCfg() config.StrategyConfig {
	return config.StrategyConfig{
		CooldownDays:     10,
		StopLossPercent:  0.05,
		DaysRange:        5,
		MaxPositions:     20,
		CapitalRatio:     0.3,
		LongAllocation:   0.5,
		ShortAllocation:  0.5,
		FillPollAttempts: 3,
		FillPollInterval: time.Millisecond,
		PriceCacheTTL:    time.Hour,
	}
}

func newFixture(t *testing.T, now time.Time, calendar Calendar, source *stubSource) *fixture {
	t.Helper()
	log := testLogger()
	cfg := strategyCfg()
	clk := clock.NewFixed(now)
	pb := broker.NewPaperBroker()

	led, err := ledger.New(clk, log, t.TempDir(), cfg.Cooldown())
	require.NoError(t, err)

	prices := execution.NewPriceService(pb, source, clk, log, cfg.PriceCacheTTL)
	exec := execution.NewExecutor(pb, prices, led, clk, log, cfg, nil)
	monitor := risk.NewMonitor(led, prices, exec, clk, log)
	selector := selection.NewSelector(source, pb, clk, log, cfg)
	allocator := allocation.NewAllocator(log, cfg)

	return &fixture{
		engine: NewEngine(calendar, selector, allocator, exec, prices, monitor, led, pb, clk, log),
		broker: pb,
		ledger: led,
		clock:  clk,
	}
}

// regularSessionTime is a Monday noon in New York.
func regularSessionTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, 8, 24, 12, 0, 0, 0, loc)
}

func TestRunCycleEntersLongPosition(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{
		"AAPL": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 97},
			{Date: now.AddDate(0, 0, -1), Close: 95},
		},
	}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "AAPL", EarningsDate: now.AddDate(0, 0, 2), MarketCap: 3e12},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 95})

	require.NoError(t, f.engine.RunCycle(context.Background()))

	// 1,000,000 * 0.3 * 0.5 = 150,000 long capital for one symbol at 95.
	positions, err := f.broker.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1578, positions["AAPL"])

	assert.True(t, f.ledger.IsTradedToday("AAPL", contracts.OrderSideBuy))
	assert.False(t, f.ledger.CanBuyAgain("AAPL"))
}

func TestRunCycleIsIdempotentWithinDay(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{
		"AAPL": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 97},
			{Date: now.AddDate(0, 0, -1), Close: 95},
		},
	}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "AAPL", EarningsDate: now.AddDate(0, 0, 2), MarketCap: 3e12},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 95})

	require.NoError(t, f.engine.RunCycle(context.Background()))
	first, _ := f.broker.GetPositions(context.Background())

	f.clock.Advance(time.Hour)
	require.NoError(t, f.engine.RunCycle(context.Background()))
	second, _ := f.broker.GetPositions(context.Background())

	assert.Equal(t, first["AAPL"], second["AAPL"], "no duplicate entry on a later cycle the same day")
	assert.Len(t, f.ledger.Trades(), 1)
}

func TestRunCycleEntersShortPosition(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{
		"NVDA": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 104},
			{Date: now.AddDate(0, 0, -1), Close: 108},
		},
	}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "NVDA", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 4e12},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetQuote("NVDA", contracts.Quote{Last: 108})

	require.NoError(t, f.engine.RunCycle(context.Background()))

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Negative(t, positions["NVDA"], "positive drift sells short")
	assert.True(t, f.ledger.IsTradedToday("NVDA", contracts.OrderSideSell))
	assert.True(t, f.ledger.CanBuyAgain("NVDA"), "short entries start no buy cooldown")
}

func TestRunCycleShortEntryRespectsCooldown(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{
		"NVDA": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 104},
			{Date: now.AddDate(0, 0, -1), Close: 108},
		},
	}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "NVDA", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 4e12},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetQuote("NVDA", contracts.Quote{Last: 108})
	f.ledger.MarkBought("NVDA")

	require.NoError(t, f.engine.RunCycle(context.Background()))

	positions, _ := f.broker.GetPositions(context.Background())
	assert.NotContains(t, positions, "NVDA", "buy cooldown gates short entries too")
	assert.Empty(t, f.ledger.Trades())
}

func TestRunCycleNoOpWhenMarketClosed(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, loc)

	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "AAPL", EarningsDate: saturday.AddDate(0, 0, 2), MarketCap: 3e12},
	}}
	f := newFixture(t, saturday, calendar, &stubSource{})
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 95})

	require.NoError(t, f.engine.RunCycle(context.Background()))

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Empty(t, positions)
	assert.Empty(t, f.ledger.Trades())
}

func TestRunCycleSkipsWhenCapitalTooSmall(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{
		"BRK": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 97},
			{Date: now.AddDate(0, 0, -1), Close: 95},
		},
	}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "BRK", EarningsDate: now.AddDate(0, 0, 2), MarketCap: 9e11},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetNetLiquidation(100)
	f.broker.SetQuote("BRK", contracts.Quote{Last: 700_000})

	require.NoError(t, f.engine.RunCycle(context.Background()))

	positions, _ := f.broker.GetPositions(context.Background())
	assert.Empty(t, positions, "zero-share sizing submits no order")
	assert.Empty(t, f.ledger.Trades())
}

func TestRunCycleExitsAfterHoldingPeriod(t *testing.T) {
	now := regularSessionTime(t)

	source := &stubSource{history: map[string][]contracts.Bar{}}
	calendar := &stubCalendar{events: []contracts.EarningsEvent{
		{Symbol: "AAPL", EarningsDate: now.AddDate(0, 0, -2), MarketCap: 3e12},
	}}

	f := newFixture(t, now, calendar, source)
	f.broker.SetPosition("AAPL", 100)
	f.broker.SetQuote("AAPL", contracts.Quote{Last: 95})

	require.NoError(t, f.engine.RunCycle(context.Background()))

	positions, _ := f.broker.GetPositions(context.Background())
	assert.NotContains(t, positions, "AAPL", "holding period expired, position closed")
	assert.True(t, f.ledger.IsTradedToday("AAPL", contracts.OrderSideSell))
}
