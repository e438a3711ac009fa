// Package memory provides in-memory implementations of the domain store
// interfaces. The dev mode runs on them (paper trading without Postgres), and
// package tests use them as the reference model for the store contract: the
// conditional transitions mirror the SQL guards in the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// Store holds limit orders and trades behind a single mutex, which gives the
// same linearizability for claims that row-level conditional updates give the
// Postgres implementation.
type Store struct {
	mu     sync.Mutex
	orders map[string]domain.LimitOrder
	trades map[string]domain.Trade // keyed by order id

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders: make(map[string]domain.LimitOrder),
		trades: make(map[string]domain.Trade),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Tests use this to control staleness.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create inserts a new limit order.
func (s *Store) Create(_ context.Context, o domain.LimitOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.NextAttemptAt.IsZero() {
		o.NextAttemptAt = o.CreatedAt
	}
	o.UpdatedAt = s.now()
	s.orders[o.ID] = o
	return nil
}

// GetByID retrieves a single order by ID.
func (s *Store) GetByID(_ context.Context, id string) (domain.LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.LimitOrder{}, domain.ErrNotFound
	}
	return o, nil
}

// ListActive returns PENDING orders whose next_attempt_at has passed.
func (s *Store) ListActive(_ context.Context, mint string) ([]domain.LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []domain.LimitOrder
	for _, o := range s.orders {
		if o.Status != domain.OrderStatusPending {
			continue
		}
		if o.NextAttemptAt.After(now) {
			continue
		}
		if mint != "" && o.Mint != mint {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListStaleExecuting returns EXECUTING orders untouched for at least olderThan.
func (s *Store) ListStaleExecuting(_ context.Context, olderThan time.Duration) ([]domain.LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var out []domain.LimitOrder
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusExecuting && !o.UpdatedAt.After(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// TryClaim atomically transitions PENDING -> EXECUTING.
func (s *Store) TryClaim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusExecuting
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return true, nil
}

// SetSignature records the transaction signature on an EXECUTING order.
func (s *Store) SetSignature(_ context.Context, id, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusExecuting {
		return domain.ErrOrderTerminal
	}
	o.Signature = &signature
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

// Settle applies a terminal or retry transition; for fills the trade is
// recorded at most once per order.
func (s *Store) Settle(_ context.Context, id string, st domain.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusExecuting {
		return domain.ErrOrderTerminal
	}

	switch st.Outcome {
	case domain.SettleFilled:
		if st.Trade == nil {
			return domain.ErrInvalidOrder
		}
		o.Status = domain.OrderStatusFilled
		sig := st.Trade.Signature
		o.Signature = &sig
		if _, exists := s.trades[id]; !exists {
			s.trades[id] = *st.Trade
		}
	case domain.SettleRetry:
		o.Status = domain.OrderStatusPending
		o.RetryCount++
		o.NextAttemptAt = st.NextAttemptAt
		o.Signature = nil
	case domain.SettleFailed:
		o.Status = domain.OrderStatusFailed
	case domain.SettleRequeue:
		o.Status = domain.OrderStatusPending
		o.Signature = nil
	default:
		return domain.ErrInvalidOrder
	}

	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

// Cancel transitions to CANCELLED from PENDING or signatureless EXECUTING.
func (s *Store) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !o.Cancellable() {
		return domain.ErrNotCancellable
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

// UpdateLastPrice refreshes the display price on the given rows.
func (s *Store) UpdateLastPrice(_ context.Context, ids []string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			p := price
			o.LastPrice = &p
			s.orders[id] = o
		}
	}
	return nil
}

// ListByOwner returns every order belonging to the owner, newest first.
func (s *Store) ListByOwner(_ context.Context, ownerID int64) ([]domain.LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LimitOrder
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetByOrderID retrieves the trade produced by a given order.
func (s *Store) GetByOrderID(_ context.Context, orderID string) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[orderID]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *Store) tradesByOwner(ownerID int64) []domain.Trade {
	var out []domain.Trade
	for _, t := range s.trades {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out
}

// TradeCount reports the number of recorded trades. Test helper.
func (s *Store) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// Trades returns a TradeStore view of the same Store so wiring code can pass
// the two interfaces separately.
func (s *Store) Trades() domain.TradeStore {
	return tradeView{s}
}

type tradeView struct {
	s *Store
}

func (v tradeView) GetByOrderID(ctx context.Context, orderID string) (domain.Trade, error) {
	return v.s.GetByOrderID(ctx, orderID)
}

func (v tradeView) ListByOwner(_ context.Context, ownerID int64) ([]domain.Trade, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.tradesByOwner(ownerID), nil
}

// Compile-time interface checks.
var (
	_ domain.OrderStore = (*Store)(nil)
	_ domain.TradeStore = tradeView{}
)
