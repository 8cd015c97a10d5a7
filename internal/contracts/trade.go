package contracts

// TradeRecord is one executed trade, append-only, partitioned by
// calendar date in the daily trade log.
type TradeRecord struct {
	Date     string    `json:"date"` // YYYY-MM-DD
	Time     string    `json:"time"` // HH:MM:SS
	Symbol   string    `json:"symbol"`
	Action   OrderSide `json:"action"`
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
	Value    float64   `json:"value"` // quantity * price
}

// Matches reports whether the record is for symbol on date, optionally
// restricted to one action. An empty action matches both sides.
func (t TradeRecord) Matches(date, symbol string, action OrderSide) bool {
	if t.Date != date || t.Symbol != symbol {
		return false
	}
	return action == "" || t.Action == action
}
