package selection

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/marketdata"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

// minHistoryPoints is the least number of closes needed to compute a
// usable pre-earnings return.
const minHistoryPoints = 3

// Selector turns an earnings calendar window into disjoint long and
// short candidate lists using market-cap and pre-earnings-return
// ranking.
type Selector struct {
	source marketdata.Source
	broker broker.Broker
	clock  clock.Clock
	logger *logger.Logger
	cfg    config.StrategyConfig
}

// NewSelector creates a candidate selector.
func NewSelector(source marketdata.Source, brk broker.Broker, clk clock.Clock, log *logger.Logger, cfg config.StrategyConfig) *Selector {
	return &Selector{
		source: source,
		broker: brk,
		clock:  clk,
		logger: log,
		cfg:    cfg,
	}
}

// ranked pairs a symbol with its pre-earnings return in percent.
type ranked struct {
	symbol string
	ret    float64
}

// Select produces the candidate set for the given calendar rows. Rows
// outside [today, today+daysRange] are ignored; symbols the broker
// cannot qualify or with unusable history are dropped.
func (s *Selector) Select(ctx context.Context, events []contracts.EarningsEvent) contracts.CandidateSet {
	now := s.clock.Now()
	windowEnd := now.AddDate(0, 0, s.cfg.DaysRange)

	// Dedup by symbol, keeping the earliest announcement in the window.
	seen := make(map[string]bool)
	var inWindow []contracts.EarningsEvent
	for _, event := range events {
		if event.EarningsDate.Before(truncateDay(now)) || event.EarningsDate.After(windowEnd) {
			continue
		}
		if seen[event.Symbol] {
			continue
		}
		seen[event.Symbol] = true
		inWindow = append(inWindow, event)
	}

	// Drop symbols the broker cannot trade.
	var tradable []contracts.EarningsEvent
	for _, event := range inWindow {
		ok, err := s.broker.Qualify(ctx, event.Symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", event.Symbol).Warn("Qualification check failed, skipping")
			continue
		}
		if !ok {
			s.logger.WithField("symbol", event.Symbol).Debug("Symbol not qualified, skipping")
			continue
		}
		tradable = append(tradable, event)
	}

	// Symbols with no reported market cap cannot be ranked by size and
	// would inflate the quintile count.
	n := 0
	for _, event := range tradable {
		if event.MarketCap > 0 {
			tradable[n] = event
			n++
		}
	}
	tradable = tradable[:n]

	// Rank by market cap descending and keep the top quintile by count.
	sort.Slice(tradable, func(i, j int) bool {
		return tradable[i].MarketCap > tradable[j].MarketCap
	})
	if n := len(tradable); n > 0 {
		tradable = tradable[:quintileCount(n)]
	}

	// Compute pre-earnings returns; symbols with unusable history are
	// dropped from ranking.
	var rankable []ranked
	for _, event := range tradable {
		ret, ok := s.preEarningsReturn(ctx, event.Symbol)
		if !ok {
			continue
		}
		rankable = append(rankable, ranked{symbol: event.Symbol, ret: ret})
	}

	sort.Slice(rankable, func(i, j int) bool {
		return rankable[i].ret < rankable[j].ret
	})

	set := partition(rankable, s.cfg.MaxPositions)

	s.logger.WithFields(map[string]interface{}{
		"window":   len(inWindow),
		"tradable": len(tradable),
		"rankable": len(rankable),
		"long":     len(set.Long),
		"short":    len(set.Short),
	}).Info("Selected candidates")
	return set
}

// preEarningsReturn computes the percent change over the most recent
// sessions. The broker's historical bars serve as fallback when the
// primary source yields too few points.
func (s *Selector) preEarningsReturn(ctx context.Context, symbol string) (float64, bool) {
	lookback := s.cfg.DaysRange
	if lookback < minHistoryPoints {
		lookback = minHistoryPoints
	}

	bars, err := s.source.GetHistory(ctx, symbol, lookback)
	if err != nil || len(bars) < minHistoryPoints {
		bars, err = s.broker.GetHistoricalBars(ctx, symbol, lookback*2)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("No usable history, dropping from ranking")
			return 0, false
		}
	}
	if len(bars) < minHistoryPoints {
		s.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"points": len(bars),
		}).Debug("Too few history points, dropping from ranking")
		return 0, false
	}

	first := bars[0].Close
	last := bars[len(bars)-1].Close
	if first <= 0 || last <= 0 {
		return 0, false
	}

	return (last/first - 1) * 100, true
}

// quintileCount returns the top/bottom slice size for n ranked
// symbols, never zero for n >= 1.
func quintileCount(n int) int {
	count := int(math.Floor(float64(n) * 0.2))
	if count < 1 {
		count = 1
	}
	return count
}

// partition splits symbols sorted ascending by return into long and
// short lists. The lists are guaranteed disjoint and bounded by
// maxPositions.
func partition(sorted []ranked, maxPositions int) contracts.CandidateSet {
	m := len(sorted)
	var long, short []string

	switch {
	case m == 0:
		// Both lists stay empty.
	case m == 1:
		if sorted[0].ret < 0 {
			long = []string{sorted[0].symbol}
		} else {
			short = []string{sorted[0].symbol}
		}
	case m < 3:
		mid := m / 2
		for _, r := range sorted[:mid] {
			long = append(long, r.symbol)
		}
		for _, r := range sorted[mid:] {
			short = append(short, r.symbol)
		}
	default:
		count := quintileCount(m)
		for _, r := range sorted[:count] {
			long = append(long, r.symbol)
		}
		for _, r := range sorted[m-count:] {
			short = append(short, r.symbol)
		}
	}

	long, short = resolveOverlap(sorted, long, short)

	if len(long) > maxPositions {
		long = long[:maxPositions]
	}
	if len(short) > maxPositions {
		short = short[:maxPositions]
	}

	return contracts.CandidateSet{Long: long, Short: short}
}

// resolveOverlap removes symbols present in both lists. A symbol in
// the lower half of the ranking stays long, otherwise it stays short;
// anything still duplicated afterwards is removed from the long list.
func resolveOverlap(sorted []ranked, long, short []string) ([]string, []string) {
	m := len(sorted)
	if m == 0 {
		return long, short
	}

	index := make(map[string]int, m)
	for i, r := range sorted {
		index[r.symbol] = i
	}

	inShort := make(map[string]bool, len(short))
	for _, sym := range short {
		inShort[sym] = true
	}

	for _, sym := range long {
		if !inShort[sym] {
			continue
		}
		pos := float64(index[sym]) / float64(m)
		if pos < 0.5 {
			short = remove(short, sym)
		} else {
			long = remove(long, sym)
		}
	}

	// Long yields priority to short on anything still duplicated.
	inShort = make(map[string]bool, len(short))
	for _, sym := range short {
		inShort[sym] = true
	}
	for _, sym := range long {
		if inShort[sym] {
			long = remove(long, sym)
		}
	}

	return long, short
}

// remove returns s without the first occurrence of sym.
func remove(s []string, sym string) []string {
	for i, v := range s {
		if v == sym {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

// truncateDay strips the time-of-day component.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
