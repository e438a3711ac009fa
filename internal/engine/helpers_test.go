package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/engine"
	"github.com/mvolkov/sol-limit-bot/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() engine.Config {
	return engine.Config{
		PollInterval:      30 * time.Second,
		WorkerCount:       4,
		MaxRetries:        5,
		RetryBackoff:      time.Minute,
		MaxSlippageBps:    50,
		SwapTimeout:       time.Second,
		ConfirmTimeout:    time.Second,
		StaleAfter:        time.Minute,
		ReconcileInterval: time.Minute,
		ReconcileGrace:    10 * time.Minute,
		TickLockTTL:       25 * time.Second,
		SwapsPerOwner:     5,
		SwapsWindow:       time.Minute,
	}
}

// seedOrder creates a PENDING order in the store and returns it.
func seedOrder(store *memory.Store, id string, kind domain.OrderKind, trigger, amount float64) domain.LimitOrder {
	order := domain.LimitOrder{
		ID:           id,
		OwnerID:      42,
		Mint:         "MintAAA111",
		Symbol:       "AAA",
		Kind:         kind,
		TriggerPrice: trigger,
		Amount:       amount,
		TotalSOL:     trigger * amount,
		Status:       domain.OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.Create(context.Background(), order); err != nil {
		panic(err)
	}
	return order
}

// stubPrices answers quotes from a fixed table, or from a per-mint queue
// when one is set. Errors are returned verbatim.
type stubPrices struct {
	mu     sync.Mutex
	prices map[string]float64
	queues map[string][]float64
	errs   map[string]error
	calls  int
}

func newStubPrices() *stubPrices {
	return &stubPrices{
		prices: make(map[string]float64),
		queues: make(map[string][]float64),
		errs:   make(map[string]error),
	}
}

func (p *stubPrices) Quote(_ context.Context, mint string) (domain.TokenPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if err := p.errs[mint]; err != nil {
		return domain.TokenPrice{}, err
	}

	price, ok := p.prices[mint]
	if q := p.queues[mint]; len(q) > 0 {
		price, ok = q[0], true
		p.queues[mint] = q[1:]
	}
	if !ok {
		return domain.TokenPrice{}, domain.ErrNotFound
	}

	return domain.TokenPrice{
		Mint:     mint,
		Symbol:   "AAA",
		PriceSOL: price,
		PriceUSD: price * 150,
		AsOf:     time.Now().UTC(),
	}, nil
}

func (p *stubPrices) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// stubSwapper runs a configurable function per call and counts invocations.
type stubSwapper struct {
	mu    sync.Mutex
	fn    func(req domain.SwapRequest) (domain.SwapResult, error)
	calls int
}

func (s *stubSwapper) Swap(_ context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	s.mu.Lock()
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	return fn(req)
}

func (s *stubSwapper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// swapFill returns a swap function that always fills at the given price,
// announcing the signature through OnSubmitted like the real swapper does.
func swapFill(signature string, price float64) func(domain.SwapRequest) (domain.SwapResult, error) {
	return func(req domain.SwapRequest) (domain.SwapResult, error) {
		if req.OnSubmitted != nil {
			_ = req.OnSubmitted(context.Background(), signature)
		}
		return domain.SwapResult{
			Signature: signature,
			Price:     price,
			TotalSOL:  price * req.Amount,
			PriceUSD:  price * req.Amount * 150,
		}, nil
	}
}

// stubChain reports a fixed status per signature; unknown signatures are
// TxUnknown.
type stubChain struct {
	mu       sync.Mutex
	statuses map[string]domain.TxStatus
	err      error
}

func newStubChain() *stubChain {
	return &stubChain{statuses: make(map[string]domain.TxStatus)}
}

func (c *stubChain) TransactionStatus(_ context.Context, signature string) (domain.TxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.TxUnknown, c.err
	}
	if st, ok := c.statuses[signature]; ok {
		return st, nil
	}
	return domain.TxUnknown, nil
}

// captureNotifier records delivered events.
type captureNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *captureNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) captured() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// stubLimiter answers a fixed allow/deny.
type stubLimiter struct {
	allow bool
	err   error
}

func (l *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, l.err
}

// stubLocks always returns the configured error, or a no-op release.
type stubLocks struct {
	err error
}

func (l *stubLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}
