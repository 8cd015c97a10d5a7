package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/reversal/internal/contracts"
)

// PaperBroker implements Broker in memory. It fills orders instantly
// at the quoted price and keeps a simulated account, which makes it
// usable both for tests and for dry runs against a live calendar.
type PaperBroker struct {
	mu sync.Mutex

	connected   bool
	quotes      map[string]contracts.Quote
	bars        map[string][]contracts.Bar
	unqualified map[string]bool
	positions   map[string]int
	account     contracts.AccountSummary
	orders      map[string]*OrderStatus
	executions  []contracts.Execution
	nextID      int

	// When set, the next PlaceOrder resolves to this status instead of
	// an instant fill.
	forcedStatus contracts.Status
	forcedFills  int
}

// NewPaperBroker creates a paper broker with a default account.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		quotes:      make(map[string]contracts.Quote),
		bars:        make(map[string][]contracts.Bar),
		unqualified: make(map[string]bool),
		positions:   make(map[string]int),
		orders:      make(map[string]*OrderStatus),
		account: contracts.AccountSummary{
			NetLiquidation: 1_000_000,
			Cash:           1_000_000,
			AvailableFunds: 1_000_000,
			BuyingPower:    2_000_000,
		},
	}
}

// Connect marks the session live.
func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

// Disconnect marks the session closed.
func (b *PaperBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// IsConnected reports whether Connect has been called.
func (b *PaperBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Qualify resolves every symbol except those marked unqualified.
func (b *PaperBroker) Qualify(ctx context.Context, symbol string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.unqualified[symbol], nil
}

// GetQuote returns the configured quote for symbol.
func (b *PaperBroker) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &q, nil
}

// GetHistoricalBars returns the configured bars for symbol.
func (b *PaperBroker) GetHistoricalBars(ctx context.Context, symbol string, days int) ([]contracts.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bars := b.bars[symbol]
	if len(bars) > days && days > 0 {
		bars = bars[len(bars)-days:]
	}
	out := make([]contracts.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// PlaceOrder fills the order instantly unless a forced status is set.
func (b *PaperBroker) PlaceOrder(ctx context.Context, order *contracts.Order) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Qty <= 0 {
		return "", fmt.Errorf("invalid quantity %d for %s", order.Qty, order.Symbol)
	}

	b.nextID++
	id := fmt.Sprintf("PAPER-%d", b.nextID)

	price := order.LimitPrice
	if price == 0 {
		if q, ok := b.quotes[order.Symbol]; ok {
			price = q.Last
		}
	}

	status := &OrderStatus{
		OrderID:      id,
		Status:       contracts.StatusFilled,
		FilledQty:    order.Qty,
		AvgFillPrice: price,
	}

	if b.forcedStatus != "" {
		status.Status = b.forcedStatus
		status.FilledQty = b.forcedFills
		status.RemainingQty = order.Qty - b.forcedFills
		b.forcedStatus = ""
		b.forcedFills = 0
	}

	if status.FilledQty > 0 {
		delta := status.FilledQty
		if order.Side == contracts.OrderSideSell {
			delta = -delta
		}
		b.positions[order.Symbol] += delta
		if b.positions[order.Symbol] == 0 {
			delete(b.positions, order.Symbol)
		}
		b.executions = append(b.executions, contracts.Execution{
			Time:     time.Now(),
			Symbol:   order.Symbol,
			Side:     order.Side,
			Shares:   status.FilledQty,
			Price:    price,
			Exchange: "PAPER",
		})
	}

	b.orders[id] = status
	return id, nil
}

// PollStatus returns the stored state for orderID.
func (b *PaperBroker) PollStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	out := *status
	return &out, nil
}

// GetPositions returns a copy of the simulated position map.
func (b *PaperBroker) GetPositions(ctx context.Context) (map[string]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.positions))
	for sym, qty := range b.positions {
		out[sym] = qty
	}
	return out, nil
}

// GetAccountSummary returns the simulated account.
func (b *PaperBroker) GetAccountSummary(ctx context.Context) (*contracts.AccountSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.account
	return &acct, nil
}

// GetExecutions returns all fills since creation.
func (b *PaperBroker) GetExecutions(ctx context.Context) ([]contracts.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.Execution, len(b.executions))
	copy(out, b.executions)
	return out, nil
}

// SetQuote sets the quote snapshot for testing and dry runs.
func (b *PaperBroker) SetQuote(symbol string, q contracts.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q.Symbol = symbol
	b.quotes[symbol] = q
}

// SetBars sets historical closes for a symbol.
func (b *PaperBroker) SetBars(symbol string, bars []contracts.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars[symbol] = bars
}

// SetUnqualified marks a symbol as failing qualification.
func (b *PaperBroker) SetUnqualified(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unqualified[symbol] = true
}

// SetPosition seeds a signed position quantity.
func (b *PaperBroker) SetPosition(symbol string, qty int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty == 0 {
		delete(b.positions, symbol)
		return
	}
	b.positions[symbol] = qty
}

// SetNetLiquidation sets the account net liquidation value.
func (b *PaperBroker) SetNetLiquidation(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.account.NetLiquidation = v
}

// ForceNextOrderStatus makes the next PlaceOrder resolve to the given
// status with filledQty shares filled.
func (b *PaperBroker) ForceNextOrderStatus(status contracts.Status, filledQty int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forcedStatus = status
	b.forcedFills = filledQty
}
