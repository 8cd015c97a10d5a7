package contracts

import "time"

// Quote is a live snapshot for one symbol. Fields the venue did not
// supply are zero or NaN depending on the broker feed.
type Quote struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Close  float64 `json:"close"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Bar is one daily close used for pre-earnings return computation.
type Bar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Position is a held position tracked by the ledger. Quantity is
// signed: positive long, negative short.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      int       `json:"quantity"`
	AvgCost       float64   `json:"avg_cost,omitempty"`
	StopLossPrice float64   `json:"stop_loss_price,omitempty"` // 0 means no stop stored
	EntryTime     time.Time `json:"entry_time,omitempty"`
}

// IsLong reports whether the position is long.
func (p Position) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is short.
func (p Position) IsShort() bool { return p.Quantity < 0 }

// AbsQuantity returns the unsigned share count.
func (p Position) AbsQuantity() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// AccountSummary is the broker account snapshot.
type AccountSummary struct {
	NetLiquidation float64 `json:"net_liquidation"`
	Cash           float64 `json:"cash"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	RealizedPnL    float64 `json:"realized_pnl"`
	AvailableFunds float64 `json:"available_funds"`
	BuyingPower    float64 `json:"buying_power"`
}

// Execution is one fill reported by the broker execution feed.
type Execution struct {
	Time     time.Time `json:"time"`
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Shares   int       `json:"shares"`
	Price    float64   `json:"price"`
	Exchange string    `json:"exchange"`
}

// Session identifies the current trading session.
type Session string

const (
	SessionPreMarket  Session = "PRE_MARKET"  // 04:00-09:30 ET
	SessionRegular    Session = "REGULAR"     // 09:30-16:00 ET
	SessionAfterHours Session = "AFTER_HOURS" // 16:00-20:00 ET
	SessionClosed     Session = "CLOSED"
)

// TradingAllowed reports whether entries may be placed in this session.
func (s Session) TradingAllowed() bool {
	return s != SessionClosed
}
