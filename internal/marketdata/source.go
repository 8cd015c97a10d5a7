package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/reversal/internal/contracts"
)

// ErrNoData indicates the provider returned nothing usable for the symbol.
var ErrNoData = errors.New("no market data available")

// Source supplies the earnings calendar and historical closes.
type Source interface {
	// GetUpcomingEarnings returns calendar rows with announcement dates
	// inside [from, to].
	GetUpcomingEarnings(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error)

	// GetHistory returns daily closes for the most recent lookback
	// sessions, oldest first.
	GetHistory(ctx context.Context, symbol string, lookbackSessions int) ([]contracts.Bar, error)
}
