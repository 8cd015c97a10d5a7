package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/reversal/internal/allocation"
	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/execution"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/internal/risk"
	"github.com/wonny/reversal/internal/selection"
	"github.com/wonny/reversal/pkg/logger"
)

// Calendar supplies the current filtered earnings calendar.
type Calendar interface {
	Current(ctx context.Context) ([]contracts.EarningsEvent, error)
}

// Engine sequences one full strategy cycle: refresh data, select
// candidates, allocate capital, execute entries, monitor exits. Cycles
// run strictly one at a time; the run loop never overlaps them.
type Engine struct {
	calendar  Calendar
	selector  *selection.Selector
	allocator *allocation.Allocator
	executor  *execution.Executor
	prices    *execution.PriceService
	monitor   *risk.Monitor
	ledger    *ledger.Ledger
	broker    broker.Broker
	clock     clock.Clock
	logger    *logger.Logger
}

// NewEngine wires the cycle components together.
func NewEngine(
	calendar Calendar,
	selector *selection.Selector,
	allocator *allocation.Allocator,
	executor *execution.Executor,
	prices *execution.PriceService,
	monitor *risk.Monitor,
	led *ledger.Ledger,
	brk broker.Broker,
	clk clock.Clock,
	log *logger.Logger,
) *Engine {
	return &Engine{
		calendar:  calendar,
		selector:  selector,
		allocator: allocator,
		executor:  executor,
		prices:    prices,
		monitor:   monitor,
		ledger:    led,
		broker:    brk,
		clock:     clk,
		logger:    log,
	}
}

// RunCycle executes one synchronous strategy cycle. A closed market
// makes the cycle a no-op. Individual symbol failures are logged and
// skipped; only an account-level failure aborts the trading step.
func (e *Engine) RunCycle(ctx context.Context) error {
	now := e.clock.Now()
	session := execution.CurrentSession(now)
	if !session.TradingAllowed() {
		e.logger.WithField("session", string(session)).Info("Market closed, skipping cycle")
		return nil
	}

	live, err := e.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("refresh positions: %w", err)
	}
	e.ledger.RefreshPositions(live)

	events, err := e.calendar.Current(ctx)
	if err != nil {
		return fmt.Errorf("load earnings calendar: %w", err)
	}

	candidates := e.selector.Select(ctx, events)

	if err := e.tradeEntries(ctx, candidates); err != nil {
		e.logger.WithError(err).Error("Trading step aborted")
	}

	e.monitor.Run(ctx, earningsDates(events))

	e.logger.WithField("session", string(session)).Info("Cycle complete")
	return nil
}

// tradeEntries sizes and submits entry orders for both candidate lists.
func (e *Engine) tradeEntries(ctx context.Context, candidates contracts.CandidateSet) error {
	if candidates.IsEmpty() {
		e.logger.Info("No candidates this cycle")
		return nil
	}

	account, err := e.broker.GetAccountSummary(ctx)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}

	plan, err := e.allocator.Allocate(account, candidates)
	if err != nil {
		if errors.Is(err, allocation.ErrNoNetLiquidation) {
			return err
		}
		return fmt.Errorf("allocate capital: %w", err)
	}

	for _, symbol := range candidates.Long {
		e.enterLong(ctx, symbol, plan.PerLongCapital)
	}
	for _, symbol := range candidates.Short {
		e.enterShort(ctx, symbol, plan.PerShortCapital)
	}

	return nil
}

// enterLong submits one long entry unless the symbol is already held
// long, already bought today, or still cooling down.
func (e *Engine) enterLong(ctx context.Context, symbol string, capital float64) {
	if pos, ok := e.ledger.Position(symbol); ok && pos.IsLong() {
		e.logger.WithField("symbol", symbol).Debug("Already long, skipping")
		return
	}
	if e.ledger.IsTradedToday(symbol, contracts.OrderSideBuy) {
		e.logger.WithField("symbol", symbol).Debug("Already bought today, skipping")
		return
	}
	if !e.ledger.CanBuyAgain(symbol) {
		e.logger.WithField("symbol", symbol).Debug("In cooldown, skipping")
		return
	}

	qty := e.sizeOrder(ctx, symbol, capital)
	if qty == 0 {
		return
	}

	e.executor.PlaceOrder(ctx, symbol, contracts.OrderSideBuy, qty, "reversal entry long", false)
}

// enterShort submits one short entry unless the symbol is already held
// short, already sold today, or still cooling down from a recent buy.
func (e *Engine) enterShort(ctx context.Context, symbol string, capital float64) {
	if pos, ok := e.ledger.Position(symbol); ok && pos.IsShort() {
		e.logger.WithField("symbol", symbol).Debug("Already short, skipping")
		return
	}
	if e.ledger.IsTradedToday(symbol, contracts.OrderSideSell) {
		e.logger.WithField("symbol", symbol).Debug("Already sold today, skipping")
		return
	}
	if !e.ledger.CanBuyAgain(symbol) {
		e.logger.WithField("symbol", symbol).Debug("In cooldown, skipping")
		return
	}

	qty := e.sizeOrder(ctx, symbol, capital)
	if qty == 0 {
		return
	}

	e.executor.PlaceOrder(ctx, symbol, contracts.OrderSideSell, qty, "reversal entry short", false)
}

// sizeOrder converts per-symbol capital into a share count. A zero
// count means no order is submitted and nothing is mutated.
func (e *Engine) sizeOrder(ctx context.Context, symbol string, capital float64) int {
	price, err := e.prices.GetPrice(ctx, symbol)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("No price for sizing, skipping")
		return 0
	}

	qty := int(math.Floor(capital / price))
	if qty <= 0 {
		e.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"capital": capital,
			"price":   price,
		}).Debug("Capital too small for one share, skipping")
		return 0
	}
	return qty
}

// earningsDates maps each calendar symbol to its announcement date.
func earningsDates(events []contracts.EarningsEvent) map[string]time.Time {
	dates := make(map[string]time.Time, len(events))
	for _, event := range events {
		if _, ok := dates[event.Symbol]; !ok {
			dates[event.Symbol] = event.EarningsDate
		}
	}
	return dates
}
