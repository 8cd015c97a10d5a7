package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/wonny/reversal/internal/clock"
	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/pkg/logger"
)

// Ledger owns open positions, stop-loss levels, per-symbol cooldown
// timestamps and the daily trade log used for duplicate-trade
// suppression. It is the only writer of this state; the executor and
// risk monitor hold a reference to the same instance.
type Ledger struct {
	mu sync.Mutex

	clock    clock.Clock
	logger   *logger.Logger
	dir      string
	cooldown time.Duration

	positions map[string]contracts.Position
	lastBuy   map[string]time.Time
	trades    []contracts.TradeRecord
}

// New creates a ledger rooted at dataDir. Today's trade log is loaded
// when present so duplicate suppression and cooldowns survive a
// restart within the day.
func New(clk clock.Clock, log *logger.Logger, dataDir string, cooldown time.Duration) (*Ledger, error) {
	l := &Ledger{
		clock:     clk,
		logger:    log,
		dir:       dataDir,
		cooldown:  cooldown,
		positions: make(map[string]contracts.Position),
		lastBuy:   make(map[string]time.Time),
	}

	if err := l.loadToday(); err != nil {
		return nil, err
	}

	return l, nil
}

// RecordTrade appends a trade record and rewrites the current day's
// durable log. The rewrite is idempotent so the file stays consistent
// after restarts within a day.
func (l *Ledger) RecordTrade(symbol string, action contracts.OrderSide, quantity int, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	record := contracts.TradeRecord{
		Date:     now.Format("2006-01-02"),
		Time:     now.Format("15:04:05"),
		Symbol:   symbol,
		Action:   action,
		Quantity: quantity,
		Price:    price,
		Value:    float64(quantity) * price,
	}
	l.trades = append(l.trades, record)

	if err := l.writeDay(record.Date); err != nil {
		return fmt.Errorf("persist trade log: %w", err)
	}

	l.logger.Trade(symbol).WithFields(map[string]interface{}{
		"action": string(action),
		"qty":    quantity,
		"price":  price,
	}).Info("Recorded trade")
	return nil
}

// IsTradedToday reports whether symbol already has a trade record for
// today. An empty action matches either side.
func (l *Ledger) IsTradedToday(symbol string, action contracts.OrderSide) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.clock.Now().Format("2006-01-02")
	for _, t := range l.trades {
		if t.Matches(today, symbol, action) {
			return true
		}
	}
	return false
}

// CanBuyAgain reports whether the cooldown since the last buy has
// elapsed. Symbols never bought are always eligible.
func (l *Ledger) CanBuyAgain(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastBuy[symbol]
	if !ok {
		return true
	}
	return l.clock.Now().Sub(last) >= l.cooldown
}

// MarkBought records the buy timestamp that starts the cooldown.
func (l *Ledger) MarkBought(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastBuy[symbol] = l.clock.Now()
}

// SetStopLoss stores the stop price on the held position. A position
// entry is created if the broker snapshot has not caught up yet.
func (l *Ledger) SetStopLoss(symbol string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.positions[symbol]
	pos.Symbol = symbol
	pos.StopLossPrice = price
	if pos.EntryTime.IsZero() {
		pos.EntryTime = l.clock.Now()
	}
	l.positions[symbol] = pos
}

// RefreshPositions replaces position quantities with the broker's live
// snapshot. Engine-local stop-loss and entry-time state survives as
// long as the symbol remains held; positions the broker no longer
// reports are dropped.
func (l *Ledger) RefreshPositions(live map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	refreshed := make(map[string]contracts.Position, len(live))
	for symbol, qty := range live {
		if qty == 0 {
			continue
		}
		pos := l.positions[symbol]
		pos.Symbol = symbol
		pos.Quantity = qty
		refreshed[symbol] = pos
	}
	l.positions = refreshed
}

// Positions returns a snapshot of all held positions.
func (l *Ledger) Positions() []contracts.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]contracts.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	return out
}

// Position returns the held position for symbol, if any.
func (l *Ledger) Position(symbol string) (contracts.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	return pos, ok
}

// Trades returns a copy of today's trade records.
func (l *Ledger) Trades() []contracts.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]contracts.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// dayFile returns the trade log path for a YYYY-MM-DD date.
func (l *Ledger) dayFile(date string) string {
	return filepath.Join(l.dir, fmt.Sprintf("trades_%s.csv", date))
}

// writeDay rewrites the trade log for one day from the in-memory list.
func (l *Ledger) writeDay(date string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.Create(l.dayFile(date))
	if err != nil {
		return fmt.Errorf("create trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "time", "symbol", "action", "quantity", "price", "value"}); err != nil {
		return err
	}

	for _, t := range l.trades {
		if t.Date != date {
			continue
		}
		row := []string{
			t.Date,
			t.Time,
			t.Symbol,
			string(t.Action),
			strconv.Itoa(t.Quantity),
			strconv.FormatFloat(t.Price, 'f', 2, 64),
			strconv.FormatFloat(t.Value, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// loadToday restores today's trade records from disk. Buy timestamps
// are reconstructed from the records so the cooldown also survives a
// same-day restart.
func (l *Ledger) loadToday() error {
	today := l.clock.Now().Format("2006-01-02")

	f, err := os.Open(l.dayFile(today))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read trade log: %w", err)
	}

	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue // Skip header
		}

		qty, _ := strconv.Atoi(row[4])
		price, _ := strconv.ParseFloat(row[5], 64)
		value, _ := strconv.ParseFloat(row[6], 64)

		record := contracts.TradeRecord{
			Date:     row[0],
			Time:     row[1],
			Symbol:   row[2],
			Action:   contracts.OrderSide(row[3]),
			Quantity: qty,
			Price:    price,
			Value:    value,
		}
		l.trades = append(l.trades, record)

		if record.Action == contracts.OrderSideBuy {
			if ts, err := time.ParseInLocation("2006-01-02 15:04:05", record.Date+" "+record.Time, l.clock.Now().Location()); err == nil {
				l.lastBuy[record.Symbol] = ts
			}
		}
	}

	if len(l.trades) > 0 {
		l.logger.WithField("count", len(l.trades)).Info("Restored today's trade log")
	}
	return nil
}
