package contracts

import "time"

// EarningsTiming indicates when on the announcement day the report lands.
type EarningsTiming string

const (
	TimingBeforeOpen EarningsTiming = "BMO" // before market open
	TimingAfterClose EarningsTiming = "AMC" // after market close
	TimingUnknown    EarningsTiming = "TNS" // time not supplied
)

// EarningsEvent is one row of the upcoming earnings calendar.
// Immutable once fetched for a cycle.
type EarningsEvent struct {
	Symbol       string         `json:"symbol"`
	CompanyName  string         `json:"company_name"`
	EarningsDate time.Time      `json:"earnings_date"`
	Timing       EarningsTiming `json:"timing"`
	EstimatedEPS float64        `json:"estimated_eps,omitempty"`
	MarketCap    float64        `json:"market_cap,omitempty"`
	Price        float64        `json:"price,omitempty"`
	Volume       int64          `json:"volume,omitempty"`
}

// CandidateSet is the output of selection: disjoint long and short lists,
// each bounded by maxPositions.
type CandidateSet struct {
	Long  []string `json:"long"`
	Short []string `json:"short"`
}

// Contains reports whether symbol appears in either list.
func (c CandidateSet) Contains(symbol string) bool {
	for _, s := range c.Long {
		if s == symbol {
			return true
		}
	}
	for _, s := range c.Short {
		if s == symbol {
			return true
		}
	}
	return false
}

// IsEmpty reports whether both lists are empty.
func (c CandidateSet) IsEmpty() bool {
	return len(c.Long) == 0 && len(c.Short) == 0
}
