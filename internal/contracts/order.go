package contracts

import "time"

// Order represents an entry or exit order handed to the broker.
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"` // BUY or SELL
	Qty        int       `json:"qty"`
	LimitPrice float64   `json:"limit_price"` // 0 for market order
	OrderType  OrderType `json:"order_type"`  // MARKET or LIMIT
	Tif        string    `json:"tif"`         // DAY
	OutsideRTH bool      `json:"outside_rth"`
	Reason     string    `json:"reason"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents market or limit order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Status represents order status
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusFilled          Status = "FILLED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusApiCancelled    Status = "API_CANCELLED"
	StatusInactive        Status = "INACTIVE"
)

// IsTerminal reports whether the status ends the fill-polling loop.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusApiCancelled, StatusInactive:
		return true
	}
	return false
}

// IsMarketOrder checks if the order is a market order
func (o *Order) IsMarketOrder() bool {
	return o.OrderType == OrderTypeMarket
}

// IsFilled checks if the order is filled
func (o *Order) IsFilled() bool {
	return o.Status == StatusFilled
}
