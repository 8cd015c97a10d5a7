package selection

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

// stubSource serves canned history for symbols.
type stubSource struct {
	history map[string][]contracts.Bar
}

func (s *stubSource) GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	return nil, nil
}

func (s *stubSource) GetHistory(ctx context.Context, symbol string, lookback int) ([]contracts.Bar, error) {
	return s.history[symbol], nil
}

func TestPartitionQuintileExample(t *testing.T) {
	sorted := []ranked{
		{symbol: "AAA", ret: -5},
		{symbol: "BBB", ret: -3},
		{symbol: "CCC", ret: -1},
		{symbol: "DDD", ret: 2},
		{symbol: "EEE", ret: 4},
	}

	set := partition(sorted, 20)

	assert.Equal(t, []string{"AAA"}, set.Long)
	assert.Equal(t, []string{"EEE"}, set.Short)
}

func TestPartitionSingleSymbol(t *testing.T) {
	set := partition([]ranked{{symbol: "AAA", ret: -2}}, 20)
	assert.Equal(t, []string{"AAA"}, set.Long)
	assert.Empty(t, set.Short)

	set = partition([]ranked{{symbol: "AAA", ret: 2}}, 20)
	assert.Empty(t, set.Long)
	assert.Equal(t, []string{"AAA"}, set.Short)

	// Zero return is not negative, so it shorts.
	set = partition([]ranked{{symbol: "AAA", ret: 0}}, 20)
	assert.Empty(t, set.Long)
	assert.Equal(t, []string{"AAA"}, set.Short)
}

func TestPartitionMidpointSplit(t *testing.T) {
	sorted := []ranked{
		{symbol: "AAA", ret: -4},
		{symbol: "BBB", ret: 3},
	}

	set := partition(sorted, 20)

	assert.Equal(t, []string{"AAA"}, set.Long)
	assert.Equal(t, []string{"BBB"}, set.Short)
}

func TestPartitionEmpty(t *testing.T) {
	set := partition(nil, 20)
	assert.Empty(t, set.Long)
	assert.Empty(t, set.Short)
}

func TestPartitionQuintileBottomAndTop(t *testing.T) {
	// Ten symbols gives a quintile count of two on each side.
	sorted := make([]ranked, 0, 10)
	for i := 0; i < 10; i++ {
		sorted = append(sorted, ranked{
			symbol: string(rune('A' + i)),
			ret:    float64(i) - 4.5,
		})
	}

	set := partition(sorted, 20)

	assert.Equal(t, []string{"A", "B"}, set.Long)
	assert.Equal(t, []string{"I", "J"}, set.Short)
}

func TestPartitionDisjointAndBounded(t *testing.T) {
	sorted := make([]ranked, 0, 100)
	for i := 0; i < 100; i++ {
		sorted = append(sorted, ranked{
			symbol: string(rune('A'+i/26)) + string(rune('A'+i%26)),
			ret:    float64(i) - 50,
		})
	}

	maxPositions := 5
	set := partition(sorted, maxPositions)

	assert.LessOrEqual(t, len(set.Long), maxPositions)
	assert.LessOrEqual(t, len(set.Short), maxPositions)
	for _, sym := range set.Long {
		assert.NotContains(t, set.Short, sym)
	}
}

func TestResolveOverlapLongYieldsOnTie(t *testing.T) {
	sorted := []ranked{
		{symbol: "AAA", ret: -1},
		{symbol: "BBB", ret: 1},
	}

	// Force the same symbol into both lists. BBB sits in the upper
	// half, so it stays short.
	long, short := resolveOverlap(sorted, []string{"AAA", "BBB"}, []string{"BBB"})
	assert.Equal(t, []string{"AAA"}, long)
	assert.Equal(t, []string{"BBB"}, short)

	// AAA sits in the lower half, so it stays long.
	long, short = resolveOverlap(sorted, []string{"AAA"}, []string{"AAA", "BBB"})
	assert.Equal(t, []string{"AAA"}, long)
	assert.Equal(t, []string{"BBB"}, short)
}

func TestSelectEndToEnd(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	bars := func(closes ...float64) []contracts.Bar {
		out := make([]contracts.Bar, len(closes))
		for i, c := range closes {
			out[i] = contracts.Bar{Date: now.AddDate(0, 0, i-len(closes)), Close: c}
		}
		return out
	}

	source := &stubSource{history: map[string][]contracts.Bar{
		"AAA": bars(100, 98, 95),  // -5%
		"BBB": bars(100, 99, 97),  // -3%
		"CCC": bars(100, 100, 99), // -1%
		"DDD": bars(100, 101, 102),
		"EEE": bars(100, 102, 104), // +4%
	}}

	pb := broker.NewPaperBroker()

	// Five big caps plus twenty fillers: the market-cap quintile cut
	// keeps exactly the five symbols with history.
	var events []contracts.EarningsEvent
	for i, sym := range []string{"AAA", "BBB", "CCC", "DDD", "EEE"} {
		events = append(events, contracts.EarningsEvent{
			Symbol:       sym,
			EarningsDate: now.AddDate(0, 0, 2),
			MarketCap:    1e11 - float64(i)*1e9,
		})
	}
	for i := 0; i < 20; i++ {
		events = append(events, contracts.EarningsEvent{
			Symbol:       "FIL" + string(rune('A'+i)),
			EarningsDate: now.AddDate(0, 0, 2),
			MarketCap:    1e8,
		})
	}

	cfg := config.StrategyConfig{DaysRange: 5, MaxPositions: 20}
	selector := NewSelector(source, pb, clk, testLogger(), cfg)

	set := selector.Select(context.Background(), events)

	require.Len(t, set.Long, 1)
	require.Len(t, set.Short, 1)
	assert.Equal(t, "AAA", set.Long[0])
	assert.Equal(t, "EEE", set.Short[0])
}

func TestSelectDropsUnknownMarketCap(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	rising := []contracts.Bar{
		{Date: now.AddDate(0, 0, -3), Close: 100},
		{Date: now.AddDate(0, 0, -2), Close: 103},
		{Date: now.AddDate(0, 0, -1), Close: 106},
	}
	source := &stubSource{history: map[string][]contracts.Bar{
		"GOOD": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 98},
			{Date: now.AddDate(0, 0, -1), Close: 95},
		},
	}}

	// Nine capless symbols with usable history. Counting them would
	// stretch the quintile cut to two and rank one of them.
	events := []contracts.EarningsEvent{
		{Symbol: "GOOD", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 5e9},
	}
	for i := 0; i < 9; i++ {
		sym := "NC" + string(rune('A'+i))
		source.history[sym] = rising
		events = append(events, contracts.EarningsEvent{
			Symbol:       sym,
			EarningsDate: now.AddDate(0, 0, 1),
		})
	}

	cfg := config.StrategyConfig{DaysRange: 5, MaxPositions: 20}
	selector := NewSelector(source, broker.NewPaperBroker(), clk, testLogger(), cfg)

	set := selector.Select(context.Background(), events)

	assert.Equal(t, []string{"GOOD"}, set.Long)
	assert.Empty(t, set.Short)
}

func TestSelectDropsUnqualifiedAndStale(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	source := &stubSource{history: map[string][]contracts.Bar{
		"GOOD": {
			{Date: now.AddDate(0, 0, -3), Close: 100},
			{Date: now.AddDate(0, 0, -2), Close: 98},
			{Date: now.AddDate(0, 0, -1), Close: 95},
		},
		// BAD has too few points and no broker fallback either.
	}}

	pb := broker.NewPaperBroker()
	pb.SetUnqualified("REJECTED")

	events := []contracts.EarningsEvent{
		{Symbol: "GOOD", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 5e9},
		{Symbol: "BAD", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 2e9},
		{Symbol: "REJECTED", EarningsDate: now.AddDate(0, 0, 1), MarketCap: 3e9},
		{Symbol: "PAST", EarningsDate: now.AddDate(0, 0, -9), MarketCap: 4e9},
	}

	cfg := config.StrategyConfig{DaysRange: 5, MaxPositions: 20}
	selector := NewSelector(source, pb, clk, testLogger(), cfg)

	set := selector.Select(context.Background(), events)

	assert.Equal(t, []string{"GOOD"}, set.Long)
	assert.Empty(t, set.Short)
}
