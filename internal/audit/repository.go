package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/internal/contracts"
)

// Repository persists terminal orders to PostgreSQL for audit. The
// engine works without it; it is wired only when a database URL is
// configured.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the audit tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_orders (
			order_id       TEXT PRIMARY KEY,
			symbol         TEXT NOT NULL,
			side           TEXT NOT NULL,
			qty            INTEGER NOT NULL,
			order_type     TEXT NOT NULL,
			limit_price    DOUBLE PRECISION,
			reason         TEXT,
			status         TEXT NOT NULL,
			filled_qty     INTEGER NOT NULL,
			avg_fill_price DOUBLE PRECISION,
			created_at     TIMESTAMPTZ NOT NULL,
			recorded_at    TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// RecordOrder stores the terminal state of a submitted order.
func (r *Repository) RecordOrder(ctx context.Context, order *contracts.Order, status *broker.OrderStatus) error {
	query := `
		INSERT INTO audit_orders (
			order_id, symbol, side, qty, order_type, limit_price, reason,
			status, filled_qty, avg_fill_price, created_at, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			filled_qty = EXCLUDED.filled_qty,
			avg_fill_price = EXCLUDED.avg_fill_price,
			recorded_at = EXCLUDED.recorded_at
	`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.Symbol, order.Side, order.Qty, order.OrderType,
		order.LimitPrice, order.Reason, status.Status, status.FilledQty,
		status.AvgFillPrice, order.CreatedAt, time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// OrderRow is one stored audit entry.
type OrderRow struct {
	OrderID      string
	Symbol       string
	Side         string
	Qty          int
	OrderType    string
	LimitPrice   float64
	Reason       string
	Status       string
	FilledQty    int
	AvgFillPrice float64
	CreatedAt    time.Time
}

// ListOrders returns audit entries created on the given calendar day,
// newest first.
func (r *Repository) ListOrders(ctx context.Context, day time.Time) ([]OrderRow, error) {
	query := `
		SELECT order_id, symbol, side, qty, order_type, limit_price, reason,
		       status, filled_qty, avg_fill_price, created_at
		FROM audit_orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
	`

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rows, err := r.pool.Query(ctx, query, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var row OrderRow
		if err := rows.Scan(
			&row.OrderID, &row.Symbol, &row.Side, &row.Qty, &row.OrderType,
			&row.LimitPrice, &row.Reason, &row.Status, &row.FilledQty,
			&row.AvgFillPrice, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
