package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Every state
// transition is a conditional UPDATE guarded by the current status, which is
// what makes claims safe across concurrent engine instances.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new limit order.
func (s *OrderStore) Create(ctx context.Context, o domain.LimitOrder) error {
	const query = `
		INSERT INTO limit_orders (
			id, owner_id, mint, symbol, kind,
			trigger_price, amount, total_sol, last_price,
			tx_signature, retry_count, next_attempt_at, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, NOW()
		)`

	nextAttempt := o.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = o.CreatedAt
	}

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.OwnerID, o.Mint, o.Symbol, string(o.Kind),
		o.TriggerPrice, o.Amount, o.TotalSOL, o.LastPrice,
		o.Signature, o.RetryCount, nextAttempt, string(o.Status),
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// orderSelectCols lists the columns selected when reading orders.
const orderSelectCols = `id, owner_id, mint, symbol, kind,
	trigger_price, amount, total_sol, last_price,
	tx_signature, retry_count, next_attempt_at, status,
	created_at, updated_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.LimitOrder, error) {
	var o domain.LimitOrder
	var kind, status string

	err := scanner.Scan(
		&o.ID, &o.OwnerID, &o.Mint, &o.Symbol, &kind,
		&o.TriggerPrice, &o.Amount, &o.TotalSOL, &o.LastPrice,
		&o.Signature, &o.RetryCount, &o.NextAttemptAt, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.LimitOrder{}, err
	}

	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.LimitOrder, error) {
	var orders []domain.LimitOrder
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order by ID.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.LimitOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM limit_orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LimitOrder{}, domain.ErrNotFound
		}
		return domain.LimitOrder{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListActive returns PENDING orders whose next_attempt_at has passed,
// optionally restricted to one mint.
func (s *OrderStore) ListActive(ctx context.Context, mint string) ([]domain.LimitOrder, error) {
	query := `SELECT ` + orderSelectCols + ` FROM limit_orders
		 WHERE status = 'PENDING' AND next_attempt_at <= NOW()`
	args := []any{}
	if mint != "" {
		query += ` AND mint = $1`
		args = append(args, mint)
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active orders: %w", err)
	}
	return orders, nil
}

// ListStaleExecuting returns EXECUTING orders untouched for at least olderThan.
func (s *OrderStore) ListStaleExecuting(ctx context.Context, olderThan time.Duration) ([]domain.LimitOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM limit_orders
		 WHERE status = 'EXECUTING' AND updated_at <= NOW() - $1::interval
		 ORDER BY updated_at`,
		olderThan.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list stale executing orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan stale executing orders: %w", err)
	}
	return orders, nil
}

// TryClaim atomically transitions the order from PENDING to EXECUTING. It
// reports false when the row is no longer PENDING — another worker won the
// claim, or the owner cancelled in the meantime.
func (s *OrderStore) TryClaim(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE limit_orders
		 SET status = 'EXECUTING', updated_at = NOW()
		 WHERE id = $1 AND status = 'PENDING'`,
		id)
	if err != nil {
		return false, fmt.Errorf("postgres: claim order %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetSignature records the transaction signature on an EXECUTING order.
func (s *OrderStore) SetSignature(ctx context.Context, id, signature string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE limit_orders
		 SET tx_signature = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'EXECUTING'`,
		id, signature)
	if err != nil {
		return fmt.Errorf("postgres: set signature on order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderTerminal
	}
	return nil
}

// Settle applies a terminal or retry transition, and for fills records the
// trade in the same transaction. The trade insert uses ON CONFLICT DO NOTHING
// on the unique order_id so a replayed settlement never produces a duplicate.
func (s *OrderStore) Settle(ctx context.Context, id string, st domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: settle order %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tag pgconn.CommandTag
	switch st.Outcome {
	case domain.SettleFilled:
		if st.Trade == nil {
			return fmt.Errorf("postgres: settle order %s: filled settlement without trade", id)
		}
		tag, err = tx.Exec(ctx,
			`UPDATE limit_orders
			 SET status = 'FILLED', tx_signature = $2, updated_at = NOW()
			 WHERE id = $1 AND status = 'EXECUTING'`,
			id, st.Trade.Signature)

	case domain.SettleRetry:
		tag, err = tx.Exec(ctx,
			`UPDATE limit_orders
			 SET status = 'PENDING', retry_count = retry_count + 1,
			     next_attempt_at = $2, tx_signature = NULL, updated_at = NOW()
			 WHERE id = $1 AND status = 'EXECUTING'`,
			id, st.NextAttemptAt)

	case domain.SettleFailed:
		tag, err = tx.Exec(ctx,
			`UPDATE limit_orders
			 SET status = 'FAILED', updated_at = NOW()
			 WHERE id = $1 AND status = 'EXECUTING'`,
			id)

	case domain.SettleRequeue:
		tag, err = tx.Exec(ctx,
			`UPDATE limit_orders
			 SET status = 'PENDING', tx_signature = NULL, updated_at = NOW()
			 WHERE id = $1 AND status = 'EXECUTING'`,
			id)

	default:
		return fmt.Errorf("postgres: settle order %s: unknown outcome %q", id, st.Outcome)
	}
	if err != nil {
		return fmt.Errorf("postgres: settle order %s (%s): %w", id, st.Outcome, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderTerminal
	}

	if st.Outcome == domain.SettleFilled {
		_, err = tx.Exec(ctx,
			`INSERT INTO trades (
				id, order_id, owner_id, mint, symbol, kind,
				price, amount, total_sol, price_usd, tx_signature, executed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (order_id) DO NOTHING`,
			st.Trade.ID, st.Trade.OrderID, st.Trade.OwnerID,
			st.Trade.Mint, st.Trade.Symbol, string(st.Trade.Kind),
			st.Trade.Price, st.Trade.Amount, st.Trade.TotalSOL, st.Trade.PriceUSD,
			st.Trade.Signature, st.Trade.ExecutedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: settle order %s: insert trade: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: settle order %s: commit: %w", id, err)
	}
	return nil
}

// Cancel transitions to CANCELLED from PENDING or signatureless EXECUTING.
func (s *OrderStore) Cancel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE limit_orders
		 SET status = 'CANCELLED', updated_at = NOW()
		 WHERE id = $1
		   AND (status = 'PENDING'
		        OR (status = 'EXECUTING' AND tx_signature IS NULL))`,
		id)
	if err != nil {
		return fmt.Errorf("postgres: cancel order %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish "not cancellable" from "no such order" for the caller.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM limit_orders WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: cancel order %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrNotCancellable
}

// UpdateLastPrice refreshes the display price cache column on the given rows.
func (s *OrderStore) UpdateLastPrice(ctx context.Context, ids []string, price float64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE limit_orders SET last_price = $2 WHERE id = ANY($1)`,
		ids, price)
	if err != nil {
		return fmt.Errorf("postgres: update last price: %w", err)
	}
	return nil
}

// ListByOwner returns every order (any status) belonging to the owner, newest
// first.
func (s *OrderStore) ListByOwner(ctx context.Context, ownerID int64) ([]domain.LimitOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM limit_orders
		 WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by owner: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by owner: %w", err)
	}
	return orders, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
