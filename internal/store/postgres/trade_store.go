package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trades are only
// ever written through OrderStore.Settle; this store is the read side.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, order_id, owner_id, mint, symbol, kind,
	price, amount, total_sol, price_usd, tx_signature, executed_at`

func scanTradeFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Trade, error) {
	var t domain.Trade
	var kind string

	err := scanner.Scan(
		&t.ID, &t.OrderID, &t.OwnerID, &t.Mint, &t.Symbol, &kind,
		&t.Price, &t.Amount, &t.TotalSOL, &t.PriceUSD, &t.Signature, &t.ExecutedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}

	t.Kind = domain.OrderKind(kind)
	return t, nil
}

// GetByOrderID retrieves the trade produced by a given order.
func (s *TradeStore) GetByOrderID(ctx context.Context, orderID string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE order_id = $1`, orderID)

	t, err := scanTradeFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade for order %s: %w", orderID, err)
	}
	return t, nil
}

// ListByOwner returns the owner's trade history, newest first.
func (s *TradeStore) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE owner_id = $1 ORDER BY executed_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by owner: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTradeFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trades by owner: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades by owner: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
