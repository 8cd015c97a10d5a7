package risk

import (
	"context"
	"time"

	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/pkg/logger"
)

// holdingPeriodDays is the post-announcement window after which a
// position is closed regardless of price.
const holdingPeriodDays = 2

// Monitor scans open positions each cycle for stop-loss breach or
// holding-period expiry and emits exit orders. Both passes are
// best-effort: one symbol's failure never stops the scan.
type Monitor struct {
	ledger   *ledger.Ledger
	prices   *execution.PriceService
	executor *execution.Executor
	clock    clock.Clock
	logger   *logger.Logger
}

// NewMonitor creates a risk monitor.
func NewMonitor(led *ledger.Ledger, prices *execution.PriceService, exec *execution.Executor, clk clock.Clock, log *logger.Logger) *Monitor {
	return &Monitor{
		ledger:   led,
		prices:   prices,
		executor: exec,
		clock:    clk,
		logger:   log,
	}
}

// Run executes the stop-loss pass followed by the holding-period pass.
// earningsDates maps held symbols to their announcement dates.
func (m *Monitor) Run(ctx context.Context, earningsDates map[string]time.Time) {
	m.stopLossPass(ctx)
	m.holdingPeriodPass(ctx, earningsDates)
}

// stopLossPass exits long positions whose price has fallen to or below
// the stored stop. Positions with no stored stop are never flagged,
// and short positions are not evaluated.
func (m *Monitor) stopLossPass(ctx context.Context) {
	for _, pos := range m.ledger.Positions() {
		if pos.Quantity <= 0 || pos.StopLossPrice <= 0 {
			continue
		}

		price, err := m.prices.GetPrice(ctx, pos.Symbol)
		if err != nil {
			m.logger.WithError(err).WithField("symbol", pos.Symbol).Warn("Stop-loss check skipped, no price")
			continue
		}

		if price > pos.StopLossPrice {
			continue
		}

		m.logger.Trade(pos.Symbol).WithFields(map[string]interface{}{
			"price":     price,
			"stop_loss": pos.StopLossPrice,
		}).Warn("Stop-loss breached, exiting position")

		if !m.executor.PlaceOrder(ctx, pos.Symbol, contracts.OrderSideSell, pos.AbsQuantity(), "stop-loss", false) {
			m.logger.Trade(pos.Symbol).Error("Stop-loss exit order failed")
		}
	}
}

// holdingPeriodPass closes positions two calendar days after their
// earnings announcement: sell longs, buy back shorts.
func (m *Monitor) holdingPeriodPass(ctx context.Context, earningsDates map[string]time.Time) {
	today := truncateDay(m.clock.Now())

	for _, pos := range m.ledger.Positions() {
		earningsDate, ok := earningsDates[pos.Symbol]
		if !ok {
			continue
		}

		exitDate := truncateDay(earningsDate).AddDate(0, 0, holdingPeriodDays)
		if today.Before(exitDate) {
			continue
		}

		action := contracts.OrderSideSell
		if pos.IsShort() {
			action = contracts.OrderSideBuy
		}

		m.logger.Trade(pos.Symbol).WithFields(map[string]interface{}{
			"earnings_date": earningsDate.Format("2006-01-02"),
			"qty":           pos.Quantity,
		}).Info("Holding period ended, closing position")

		if !m.executor.PlaceOrder(ctx, pos.Symbol, action, pos.AbsQuantity(), "holding period end", false) {
			m.logger.Trade(pos.Symbol).Error("Holding-period exit order failed")
		}
	}
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
