package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/internal/ledger"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

// limitOffset is the limit-price margin relative to the reference
// price: buy 1% above, sell 1% below.
const limitOffset = 0.01

// Recorder receives the terminal state of every submitted order for
// audit storage. A nil Recorder disables auditing.
type Recorder interface {
	RecordOrder(ctx context.Context, order *contracts.Order, status *broker.OrderStatus) error
}

// Executor resolves a trade price, chooses order type and session
// rules, submits through the broker and reconciles fill status.
type Executor struct {
	broker   broker.Broker
	prices   *PriceService
	ledger   *ledger.Ledger
	clock    clock.Clock
	logger   *logger.Logger
	cfg      config.StrategyConfig
	recorder Recorder
}

// NewExecutor creates an order executor. recorder may be nil.
func NewExecutor(brk broker.Broker, prices *PriceService, led *ledger.Ledger, clk clock.Clock, log *logger.Logger, cfg config.StrategyConfig, recorder Recorder) *Executor {
	return &Executor{
		broker:   brk,
		prices:   prices,
		ledger:   led,
		clock:    clk,
		logger:   log,
		cfg:      cfg,
		recorder: recorder,
	}
}

// PlaceOrder submits one entry or exit order and waits for its
// terminal status. It returns true when the order filled, counting a
// partial fill as success. On a successful BUY the cooldown timestamp
// and stop-loss price are stored; on failure no state is mutated.
func (e *Executor) PlaceOrder(ctx context.Context, symbol string, action contracts.OrderSide, quantity int, reason string, useLimit bool) bool {
	log := e.logger.Trade(symbol).WithFields(map[string]interface{}{
		"action": string(action),
		"qty":    quantity,
		"reason": reason,
	})

	if quantity <= 0 {
		log.Warn("Rejecting order with non-positive quantity")
		return false
	}

	qualified, err := e.broker.Qualify(ctx, symbol)
	if err != nil || !qualified {
		log.WithError(err).Warn("Symbol failed qualification, order not submitted")
		return false
	}

	price, err := e.prices.GetPrice(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("No usable price, order not submitted")
		return false
	}

	order := e.buildOrder(symbol, action, quantity, price, reason, useLimit)

	orderID, err := e.broker.PlaceOrder(ctx, order)
	if err != nil {
		log.WithError(err).Error("Order submission failed")
		return false
	}
	order.Status = contracts.StatusSubmitted
	order.UpdatedAt = e.clock.Now()

	status, err := e.awaitTerminal(ctx, orderID)
	if err != nil {
		log.WithError(err).Error("Order status polling failed")
		return false
	}
	if status == nil {
		log.Error("No order status observed")
		return false
	}

	e.recordAudit(ctx, order, status)

	if !status.Success() {
		log.WithField("status", string(status.Status)).Warn("Order did not fill")
		return false
	}

	fillPrice := status.AvgFillPrice
	if fillPrice <= 0 {
		fillPrice = price
	}

	if action == contracts.OrderSideBuy && status.FilledQty > 0 {
		e.ledger.MarkBought(symbol)
		stop := fillPrice * (1 - e.cfg.StopLossPercent)
		e.ledger.SetStopLoss(symbol, stop)
		log.WithField("stop_loss", stop).Debug("Stored stop-loss for fill")
	}

	if err := e.ledger.RecordTrade(symbol, action, status.FilledQty, fillPrice); err != nil {
		log.WithError(err).Error("Failed to persist trade record")
	}

	log.WithFields(map[string]interface{}{
		"filled_qty": status.FilledQty,
		"avg_price":  fillPrice,
	}).Info("Order filled")
	return true
}

// buildOrder applies the session and order-type policy. Outside the
// regular session, or when the caller asks for it, the order goes out
// as a LIMIT priced 1% through the reference price. Every order allows
// extended hours and expires at end of day.
func (e *Executor) buildOrder(symbol string, action contracts.OrderSide, quantity int, price float64, reason string, useLimit bool) *contracts.Order {
	now := e.clock.Now()
	session := CurrentSession(now)

	order := &contracts.Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       action,
		Qty:        quantity,
		OrderType:  contracts.OrderTypeMarket,
		Tif:        "DAY",
		OutsideRTH: true,
		Reason:     reason,
		Status:     contracts.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if useLimit || session != contracts.SessionRegular {
		order.OrderType = contracts.OrderTypeLimit
		if action == contracts.OrderSideBuy {
			order.LimitPrice = price * (1 + limitOffset)
		} else {
			order.LimitPrice = price * (1 - limitOffset)
		}
	}

	return order
}

// awaitTerminal polls the order until it reaches a terminal status or
// the poll attempts run out. The last observed status is returned
// either way.
func (e *Executor) awaitTerminal(ctx context.Context, orderID string) (*broker.OrderStatus, error) {
	var status *broker.OrderStatus
	var err error

	for attempt := 0; attempt < e.cfg.FillPollAttempts; attempt++ {
		status, err = e.broker.PollStatus(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("poll order %s: %w", orderID, err)
		}
		if status.Status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(e.cfg.FillPollInterval):
		}
	}

	return status, nil
}

// recordAudit hands the terminal order to the audit store, if any.
func (e *Executor) recordAudit(ctx context.Context, order *contracts.Order, status *broker.OrderStatus) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordOrder(ctx, order, status); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Warn("Audit record failed")
	}
}
