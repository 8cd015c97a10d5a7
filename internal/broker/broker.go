package broker

import (
	"context"

	"github.com/wonny/reversal/internal/contracts"
)

// Broker defines the interface to the brokerage gateway.
type Broker interface {
	// Connect establishes the gateway session.
	Connect(ctx context.Context) error

	// Disconnect releases the gateway session.
	Disconnect()

	// IsConnected reports whether the session is live.
	IsConnected() bool

	// Qualify checks whether the broker can resolve and trade the symbol
	Qualify(ctx context.Context, symbol string) (bool, error)

	// GetQuote retrieves a live quote snapshot
	GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error)

	// GetHistoricalBars retrieves recent daily closes
	GetHistoricalBars(ctx context.Context, symbol string, days int) ([]contracts.Bar, error)

	// PlaceOrder submits an order and returns the broker order ID
	PlaceOrder(ctx context.Context, order *contracts.Order) (string, error)

	// PollStatus retrieves the current state of a placed order
	PollStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	// GetPositions retrieves the live position snapshot, symbol to signed quantity
	GetPositions(ctx context.Context) (map[string]int, error)

	// GetAccountSummary retrieves the account snapshot
	GetAccountSummary(ctx context.Context) (*contracts.AccountSummary, error)

	// GetExecutions retrieves today's fills
	GetExecutions(ctx context.Context) ([]contracts.Execution, error)
}

// OrderStatus represents the polled state of a placed order.
type OrderStatus struct {
	OrderID      string
	Status       contracts.Status
	FilledQty    int
	AvgFillPrice float64
	RemainingQty int
}

// Success reports whether the order counts as executed. A partial fill
// counts the same as a full fill.
func (s *OrderStatus) Success() bool {
	return s.Status == contracts.StatusFilled || s.FilledQty > 0
}
