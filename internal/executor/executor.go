package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

// DefaultMinOrderInterval is the per-asset spacing between orders. It is a
// hard throttle independent of the engine's polling interval.
const DefaultMinOrderInterval = 30 * time.Second

// Config holds configuration for a per-asset executor.
type Config struct {
	Symbol           string
	TradeAmount      float64 // fixed quantity per buy
	DryRun           bool
	MinOrderInterval time.Duration      // defaults to DefaultMinOrderInterval
	Client           ports.OrderClient  // required when DryRun is false
	Journal          ports.OrderJournal // optional audit log
	Logger           ports.Logger
}

// Executor submits rate-limited orders for one asset, either simulated or
// delegated to a live order client, and keeps the asset's order history.
type Executor struct {
	symbol      string
	tradeAmount float64
	dryRun      bool
	limiter     *rate.Limiter
	client      ports.OrderClient
	journal     ports.OrderJournal
	logger      ports.Logger

	mu      sync.Mutex
	history []*domain.Order
}

// New creates an executor. A live executor requires an order client.
func New(cfg Config) (*Executor, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("executor requires a symbol")
	}
	if cfg.TradeAmount <= 0 {
		return nil, fmt.Errorf("executor requires a positive trade amount")
	}
	if !cfg.DryRun && cfg.Client == nil {
		return nil, fmt.Errorf("live executor requires an order client")
	}
	interval := cfg.MinOrderInterval
	if interval <= 0 {
		interval = DefaultMinOrderInterval
	}
	return &Executor{
		symbol:      cfg.Symbol,
		tradeAmount: cfg.TradeAmount,
		dryRun:      cfg.DryRun,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		client:      cfg.Client,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
	}, nil
}

// CanPlace reports whether the minimum order interval has elapsed since the
// asset's last committed order.
func (e *Executor) CanPlace() bool {
	return e.limiter.Tokens() >= 1
}

// Buy places a market buy for the configured trade amount at the given
// price. Returns ErrOrderThrottled when the gate is closed. A backend
// failure yields no order and does not consume the gate's slot.
func (e *Executor) Buy(ctx context.Context, price float64) (*domain.Order, error) {
	return e.place(ctx, domain.Buy, e.tradeAmount, price)
}

// Sell places a market sell for the supplied quantity. Gating and
// bookkeeping match Buy.
func (e *Executor) Sell(ctx context.Context, quantity, price float64) (*domain.Order, error) {
	return e.place(ctx, domain.Sell, quantity, price)
}

func (e *Executor) place(ctx context.Context, side domain.Side, quantity, price float64) (*domain.Order, error) {
	// Probe the gate without consuming it; the slot is taken only after a
	// successful submission, so a failed order never blocks the next attempt
	// for a full interval. The executor is single-owner per asset, so the
	// probe-then-consume sequence cannot race.
	if e.limiter.Tokens() < 1 {
		if e.logger != nil {
			e.logger.Warn(ctx, "Order throttled", map[string]interface{}{
				"symbol": e.symbol,
				"side":   side,
			})
		}
		return nil, ports.ErrOrderThrottled
	}

	var order *domain.Order
	var err error
	if e.dryRun {
		order = e.simulateOrder(side, quantity, price)
	} else {
		order, err = e.client.SubmitOrder(ctx, e.symbol, side, quantity, price)
	}
	if err != nil {
		if e.logger != nil {
			e.logger.Error(ctx, err, "Order submission failed", map[string]interface{}{
				"symbol":   e.symbol,
				"side":     side,
				"quantity": quantity,
				"price":    price,
			})
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrOrderPlacementFailed, err)
	}

	e.limiter.Allow()

	e.mu.Lock()
	e.history = append(e.history, order)
	e.mu.Unlock()

	e.appendJournal(ctx, order)

	if e.logger != nil {
		e.logger.Info(ctx, "Order filled", map[string]interface{}{
			"symbol":   e.symbol,
			"side":     side,
			"quantity": order.Quantity,
			"price":    order.Price,
			"dryRun":   e.dryRun,
			"orderID":  order.ID,
		})
	}
	return order, nil
}

func (e *Executor) simulateOrder(side domain.Side, quantity, price float64) *domain.Order {
	return &domain.Order{
		ID:        "sim-" + uuid.NewString(),
		Symbol:    e.symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Status:    domain.OrderFilled,
		Timestamp: time.Now().UTC(),
	}
}

// appendJournal writes the order to the audit journal. Best effort: a
// journal failure is logged and never surfaces to the trading path.
func (e *Executor) appendJournal(ctx context.Context, order *domain.Order) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordOrder(ctx, order); err != nil && e.logger != nil {
		e.logger.Error(ctx, err, "Failed to journal order", map[string]interface{}{
			"symbol":  e.symbol,
			"orderID": order.ID,
		})
	}
}

// CancelAll cancels outstanding orders on the exchange. Best effort and a
// no-op in dry-run mode, where simulated orders fill immediately.
func (e *Executor) CancelAll(ctx context.Context) {
	if e.dryRun {
		if e.logger != nil {
			e.logger.Debug(ctx, "Simulated cancel of outstanding orders", map[string]interface{}{"symbol": e.symbol})
		}
		return
	}
	if err := e.client.CancelAll(ctx, e.symbol); err != nil && e.logger != nil {
		e.logger.Error(ctx, err, "Failed to cancel outstanding orders", map[string]interface{}{"symbol": e.symbol})
	}
}

// OrderHistory returns a copy of the asset's order history.
func (e *Executor) OrderHistory() []*domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Order, len(e.history))
	copy(out, e.history)
	return out
}

// LastOrder returns the most recent order, or nil when none exist.
func (e *Executor) LastOrder() *domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return nil
	}
	return e.history[len(e.history)-1]
}
