package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/executor"
	"multiTraderBot/internal/portfolio"
	"multiTraderBot/internal/ports"
	"multiTraderBot/internal/trigger"
)

// CycleOutcome tags the result of one trading cycle so the caller knows how
// to pace the next attempt.
type CycleOutcome int

const (
	// CycleOK: the cycle completed; poll again after the normal interval.
	CycleOK CycleOutcome = iota
	// CycleSkipped: transient data problem (price unavailable); nothing was
	// mutated, poll again after the normal interval.
	CycleSkipped
	// CycleFailed: an escalated error; the caller should back off before
	// the next attempt.
	CycleFailed
)

// CycleResult is the tagged outcome of TraderEngine.RunOnce.
type CycleResult struct {
	Outcome CycleOutcome
	Err     error
}

// EngineConfig holds the collaborators and settings for one trading engine.
type EngineConfig struct {
	Asset            domain.Asset
	DryRun           bool
	MinOrderInterval time.Duration // optional; executor default applies

	Prices   ports.PriceSource
	Client   ports.OrderClient // required when DryRun is false
	Journal  ports.OrderJournal
	Notifier ports.Notifier
	Logger   ports.Logger
}

// EngineStatus is a consistent snapshot of an engine's run state.
type EngineStatus struct {
	Symbol          string                 `json:"symbol"`
	IsRunning       bool                   `json:"is_running"`
	RunCount        int                    `json:"run_count"`
	ErrorCount      int                    `json:"error_count"`
	LastRunTime     time.Time              `json:"last_run_time"`
	CurrentPrice    float64                `json:"current_price"`
	Portfolio       domain.PortfolioStatus `json:"portfolio"`
	LastAction      domain.Action          `json:"last_action,omitempty"`
	LastActionPrice float64                `json:"last_action_price,omitempty"`
	SignalStrength  float64                `json:"signal_strength"`
}

// TraderEngine runs the decision cycle for a single asset: fetch price,
// decide, maybe order, maybe update the ledger, notify. Each engine
// exclusively owns its portfolio, trigger history and run state; only status
// queries read them concurrently.
type TraderEngine struct {
	asset  domain.Asset
	dryRun bool

	prices    ports.PriceSource
	portfolio *portfolio.Portfolio
	trigger   *trigger.Trigger
	executor  *executor.Executor
	notifier  ports.Notifier
	logger    ports.Logger

	mu          sync.RWMutex
	isRunning   bool
	runCount    int
	errorCount  int
	lastRunTime time.Time
}

// NewTraderEngine wires a trading engine from an asset configuration. The
// asset is immutable for the engine's lifetime; changed configuration means
// a new engine.
func NewTraderEngine(cfg EngineConfig) (*TraderEngine, error) {
	if cfg.Asset.Symbol == "" {
		return nil, fmt.Errorf("asset symbol is required")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price source is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	exec, err := executor.New(executor.Config{
		Symbol:           cfg.Asset.Symbol,
		TradeAmount:      cfg.Asset.TradeAmount,
		DryRun:           cfg.DryRun,
		MinOrderInterval: cfg.MinOrderInterval,
		Client:           cfg.Client,
		Journal:          cfg.Journal,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build executor for %s: %w", cfg.Asset.Symbol, err)
	}

	eng := &TraderEngine{
		asset:     cfg.Asset,
		dryRun:    cfg.DryRun,
		prices:    cfg.Prices,
		portfolio: portfolio.New(cfg.Asset.Symbol, cfg.Logger),
		trigger:   trigger.New(cfg.Asset.Symbol, cfg.Asset.Signal, cfg.Logger),
		executor:  exec,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
	}
	if cfg.Logger != nil {
		cfg.Logger.Info(context.Background(), "Trading engine initialized", map[string]interface{}{
			"symbol": cfg.Asset.Symbol,
			"dryRun": cfg.DryRun,
		})
	}
	return eng, nil
}

// Symbol returns the engine's asset symbol.
func (e *TraderEngine) Symbol() string {
	return e.asset.Symbol
}

// Asset returns the engine's immutable asset configuration.
func (e *TraderEngine) Asset() domain.Asset {
	return e.asset
}

// Start marks the engine as running.
func (e *TraderEngine) Start() {
	e.mu.Lock()
	e.isRunning = true
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Info(context.Background(), "Trading engine started", map[string]interface{}{"symbol": e.asset.Symbol})
	}
}

// Stop marks the engine as stopped and cancels outstanding orders.
func (e *TraderEngine) Stop(ctx context.Context) {
	e.mu.Lock()
	e.isRunning = false
	e.mu.Unlock()
	e.executor.CancelAll(ctx)
	if e.logger != nil {
		e.logger.Info(ctx, "Trading engine stopped", map[string]interface{}{"symbol": e.asset.Symbol})
	}
}

// IsRunning reports whether the engine is marked running.
func (e *TraderEngine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// RunOnce executes one trading cycle and returns a tagged result. A missing
// price skips the cycle without touching ledger or history; execution
// failures are logged, notified and escalate for backoff, but never stop the
// loop.
func (e *TraderEngine) RunOnce(ctx context.Context) CycleResult {
	e.mu.Lock()
	e.runCount++
	e.mu.Unlock()

	price, err := e.prices.GetPrice(ctx, e.asset.Symbol)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn(ctx, "Price unavailable, skipping cycle", map[string]interface{}{
				"symbol": e.asset.Symbol,
				"reason": err.Error(),
			})
		}
		return CycleResult{Outcome: CycleSkipped, Err: err}
	}

	action := e.trigger.Decide(ctx, price, e.portfolio)

	var cycleErr error
	switch action {
	case domain.ActionBuy:
		e.notifier.SendSignal(ctx, e.asset.Symbol, action, price, "drop from recent high")
		cycleErr = e.executeBuy(ctx, price)
	case domain.ActionSell:
		e.notifier.SendSignal(ctx, e.asset.Symbol, action, price, "profit target reached")
		cycleErr = e.executeSell(ctx, price)
	default:
		if e.logger != nil {
			e.logger.Debug(ctx, "Holding", map[string]interface{}{"symbol": e.asset.Symbol, "price": price})
		}
	}

	e.mu.Lock()
	e.lastRunTime = time.Now().UTC()
	if cycleErr != nil {
		e.errorCount++
	}
	e.mu.Unlock()

	if cycleErr != nil {
		return CycleResult{Outcome: CycleFailed, Err: cycleErr}
	}
	return CycleResult{Outcome: CycleOK}
}

// executeBuy places the buy and applies it to the ledger. A closed order
// gate is not an error; a backend failure is.
func (e *TraderEngine) executeBuy(ctx context.Context, price float64) error {
	order, err := e.executor.Buy(ctx, price)
	if err != nil {
		if errors.Is(err, ports.ErrOrderThrottled) {
			return nil
		}
		e.notifier.SendError(ctx, e.asset.Symbol, fmt.Sprintf("buy failed: %v", err))
		return err
	}
	e.portfolio.RecordBuy(ctx, order.Quantity, order.Price)
	e.notifier.SendTrade(ctx, order, e.portfolio.Status(price))
	return nil
}

// executeSell sells the configured fraction of holdings. If the ledger
// rejects the sell after the order was already placed, the order stays
// unreconciled: it is logged and notified as an error, a known best-effort
// limitation of the simulated accounting.
func (e *TraderEngine) executeSell(ctx context.Context, price float64) error {
	quantity := e.portfolio.Holdings() * e.trigger.Params().SellRatio
	if quantity <= 0 {
		return nil
	}
	order, err := e.executor.Sell(ctx, quantity, price)
	if err != nil {
		if errors.Is(err, ports.ErrOrderThrottled) {
			return nil
		}
		e.notifier.SendError(ctx, e.asset.Symbol, fmt.Sprintf("sell failed: %v", err))
		return err
	}
	if !e.portfolio.RecordSell(ctx, order.Quantity, order.Price) {
		err := fmt.Errorf("ledger rejected sell of %f %s; order %s left unreconciled", order.Quantity, e.asset.Symbol, order.ID)
		if e.logger != nil {
			e.logger.Error(ctx, err, "Sell not applied to ledger", map[string]interface{}{"symbol": e.asset.Symbol})
		}
		e.notifier.SendError(ctx, e.asset.Symbol, err.Error())
		return err
	}
	e.notifier.SendTrade(ctx, order, e.portfolio.Status(price))
	return nil
}

// Status returns a consistent snapshot of the engine state. Safe to call
// concurrently with an in-progress cycle.
func (e *TraderEngine) Status(ctx context.Context) EngineStatus {
	price, err := e.prices.GetPrice(ctx, e.asset.Symbol)
	if err != nil {
		price = 0
	}

	lastAction, lastActionPrice := e.trigger.LastAction()
	strength := 0.0
	if price > 0 {
		strength = e.trigger.SignalStrength(price)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return EngineStatus{
		Symbol:          e.asset.Symbol,
		IsRunning:       e.isRunning,
		RunCount:        e.runCount,
		ErrorCount:      e.errorCount,
		LastRunTime:     e.lastRunTime,
		CurrentPrice:    price,
		Portfolio:       e.portfolio.Status(price),
		LastAction:      lastAction,
		LastActionPrice: lastActionPrice,
		SignalStrength:  strength,
	}
}

// SendStatusNotification emits a STATUS event with the current portfolio
// snapshot. Returns an error when the price is unavailable and no snapshot
// could be valued.
func (e *TraderEngine) SendStatusNotification(ctx context.Context) error {
	price, err := e.prices.GetPrice(ctx, e.asset.Symbol)
	if err != nil {
		return fmt.Errorf("status for %s: %w", e.asset.Symbol, err)
	}
	e.notifier.SendStatus(ctx, e.portfolio.Status(price), price)
	return nil
}

// OrderHistory exposes the asset's order history (copy).
func (e *TraderEngine) OrderHistory() []*domain.Order {
	return e.executor.OrderHistory()
}
