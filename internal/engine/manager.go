package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultStatusInterval = 5 * time.Minute
	defaultStopTimeout    = 5 * time.Second
	// broadcastBackoff is applied when a whole status broadcast round fails.
	broadcastBackoff = time.Minute
)

// ManagerConfig holds the collaborators and settings for the orchestrator.
type ManagerConfig struct {
	// LoadAssets supplies the asset list at construction and on Reload.
	LoadAssets func(ctx context.Context) ([]domain.Asset, error)

	DryRun           bool
	PollInterval     time.Duration // between cycles; doubled after a failed cycle
	StatusInterval   time.Duration // between status broadcasts
	MaxWorkers       int           // concurrent cycle bound; defaults to the asset count
	StopTimeout      time.Duration // bounded join on stop/remove
	MinOrderInterval time.Duration // per-asset order gate spacing

	Prices   ports.PriceSource
	Client   ports.OrderClient
	Journal  ports.OrderJournal
	Notifier ports.Notifier
	Logger   ports.Logger
}

// ManagerStatus summarizes the orchestrator itself.
type ManagerStatus struct {
	IsRunning       bool    `json:"is_running"`
	TotalEngines    int     `json:"total_engines"`
	ActiveTasks     int     `json:"active_tasks"`
	DryRun          bool    `json:"dry_run"`
	TotalValue      float64 `json:"total_value"`
	TotalProfit     float64 `json:"total_profit"`
	TotalProfitRate float64 `json:"total_profit_rate"`
}

// OverallStatus aggregates the manager and all engine snapshots.
type OverallStatus struct {
	Manager ManagerStatus           `json:"manager"`
	Engines map[string]EngineStatus `json:"engines"`
}

// TraderManager owns the set of trading engines and their lifecycle. Each
// engine runs one long-lived task; cycle execution is bounded by a worker
// semaphore, and a separate task broadcasts status updates. The engine map
// is never exposed; start/stop/reload/add/remove serialize on an internal
// lock, and the per-task loops observe a shared atomic run flag plus a
// cancellation context for cooperative stop.
type TraderManager struct {
	cfg ManagerConfig

	pollInterval   time.Duration
	statusInterval time.Duration
	stopTimeout    time.Duration

	isRunning atomic.Bool

	// opMu serializes orchestrator-level operations and guards the fields
	// below. Loop goroutines never take it; they watch isRunning and the
	// run context instead.
	opMu       sync.Mutex
	engines    map[string]*TraderEngine
	tasks      map[string]chan struct{}
	slots      chan struct{}
	runCtx     context.Context
	cancel     context.CancelFunc
	statusDone chan struct{}
}

// NewTraderManager loads the asset list and constructs one engine per asset.
// An unreadable asset list is fatal.
func NewTraderManager(ctx context.Context, cfg ManagerConfig) (*TraderManager, error) {
	if cfg.LoadAssets == nil {
		return nil, fmt.Errorf("asset loader is required")
	}
	if cfg.Prices == nil || cfg.Notifier == nil {
		return nil, fmt.Errorf("price source and notifier are required")
	}

	m := &TraderManager{
		cfg:            cfg,
		pollInterval:   cfg.PollInterval,
		statusInterval: cfg.StatusInterval,
		stopTimeout:    cfg.StopTimeout,
		engines:        make(map[string]*TraderEngine),
		tasks:          make(map[string]chan struct{}),
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.statusInterval <= 0 {
		m.statusInterval = defaultStatusInterval
	}
	if m.stopTimeout <= 0 {
		m.stopTimeout = defaultStopTimeout
	}

	if err := m.loadEngines(ctx); err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		cfg.Logger.Info(ctx, "Trader manager initialized", map[string]interface{}{
			"assets": len(m.engines),
			"dryRun": cfg.DryRun,
		})
	}
	return m, nil
}

// loadEngines reads the asset list and rebuilds the engine map. Caller holds
// opMu (or is the constructor).
func (m *TraderManager) loadEngines(ctx context.Context) error {
	assets, err := m.cfg.LoadAssets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load asset configuration: %w", err)
	}
	engines := make(map[string]*TraderEngine, len(assets))
	for _, asset := range assets {
		eng, err := m.newEngine(asset)
		if err != nil {
			return err
		}
		engines[asset.Symbol] = eng
	}
	m.engines = engines
	return nil
}

func (m *TraderManager) newEngine(asset domain.Asset) (*TraderEngine, error) {
	return NewTraderEngine(EngineConfig{
		Asset:            asset,
		DryRun:           m.cfg.DryRun,
		MinOrderInterval: m.cfg.MinOrderInterval,
		Prices:           m.cfg.Prices,
		Client:           m.cfg.Client,
		Journal:          m.cfg.Journal,
		Notifier:         m.cfg.Notifier,
		Logger:           m.cfg.Logger,
	})
}

// Start launches every engine on the worker pool plus the status
// broadcaster. Idempotent: starting a running manager only logs a warning.
func (m *TraderManager) Start(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.isRunning.Load() {
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn(ctx, "Trader manager already running")
		}
		return
	}
	m.startLocked(ctx)
}

func (m *TraderManager) startLocked(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.isRunning.Store(true)

	workers := m.cfg.MaxWorkers
	if workers <= 0 {
		workers = len(m.engines)
	}
	if workers <= 0 {
		workers = 1
	}
	m.slots = make(chan struct{}, workers)

	for symbol, eng := range m.engines {
		eng.Start()
		m.spawnLocked(runCtx, symbol, eng)
	}

	m.statusDone = make(chan struct{})
	go m.statusLoop(runCtx, m.statusDone)

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Trader manager started", map[string]interface{}{
			"engines":    len(m.engines),
			"maxWorkers": workers,
		})
	}
}

// spawnLocked starts the long-lived task for one engine. Caller holds opMu.
func (m *TraderManager) spawnLocked(runCtx context.Context, symbol string, eng *TraderEngine) {
	done := make(chan struct{})
	m.tasks[symbol] = done
	go m.runEngineLoop(runCtx, eng, m.slots, done)
}

// runEngineLoop drives one engine: acquire a worker slot, run a cycle,
// release, sleep. A failed cycle doubles the sleep. The loop exits when the
// manager or the engine stops; cancellation is observed between cycles, not
// inside one.
func (m *TraderManager) runEngineLoop(ctx context.Context, eng *TraderEngine, slots chan struct{}, done chan struct{}) {
	defer close(done)
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Engine loop started", map[string]interface{}{"symbol": eng.Symbol()})
	}

	for m.isRunning.Load() && eng.IsRunning() {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		result := eng.RunOnce(ctx)
		<-slots

		sleep := m.pollInterval
		switch result.Outcome {
		case CycleSkipped:
			if m.cfg.Logger != nil {
				m.cfg.Logger.Warn(ctx, "Cycle skipped", map[string]interface{}{
					"symbol": eng.Symbol(),
					"reason": fmt.Sprint(result.Err),
				})
			}
		case CycleFailed:
			sleep = 2 * m.pollInterval
			if m.cfg.Logger != nil {
				m.cfg.Logger.Error(ctx, result.Err, "Cycle failed, backing off", map[string]interface{}{
					"symbol":  eng.Symbol(),
					"backoff": sleep.String(),
				})
			}
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return
		}
	}

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Engine loop exited", map[string]interface{}{"symbol": eng.Symbol()})
	}
}

// statusLoop periodically asks every engine to emit a status notification.
// Per-asset failures are logged and skipped; a round in which every engine
// failed backs off for a minute.
func (m *TraderManager) statusLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.statusInterval):
		}

		engines := m.engineSnapshot()
		failures := 0
		for _, eng := range engines {
			if err := eng.SendStatusNotification(ctx); err != nil {
				failures++
				if m.cfg.Logger != nil {
					m.cfg.Logger.Error(ctx, err, "Status notification failed", map[string]interface{}{"symbol": eng.Symbol()})
				}
			}
		}

		if len(engines) > 0 && failures == len(engines) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(broadcastBackoff):
			}
		}
	}
}

// Stop clears the run flag, stops every engine and waits (bounded) for the
// in-flight tasks to exit.
func (m *TraderManager) Stop(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.isRunning.Load() {
		return
	}
	m.stopLocked(ctx)
}

func (m *TraderManager) stopLocked(ctx context.Context) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Trader manager stopping")
	}
	m.isRunning.Store(false)
	m.cancel()

	for _, eng := range m.engines {
		eng.Stop(ctx)
	}

	pending := make([]chan struct{}, 0, len(m.tasks)+1)
	for _, done := range m.tasks {
		pending = append(pending, done)
	}
	if m.statusDone != nil {
		pending = append(pending, m.statusDone)
	}
	m.tasks = make(map[string]chan struct{})
	m.statusDone = nil
	m.slots = nil

	m.joinTasks(ctx, pending)
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Trader manager stopped")
	}
}

// joinTasks waits for the given done channels within the stop timeout.
func (m *TraderManager) joinTasks(ctx context.Context, pending []chan struct{}) {
	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	for _, done := range pending {
		select {
		case <-done:
		case <-timer.C:
			if m.cfg.Logger != nil {
				m.cfg.Logger.Warn(ctx, "Timed out waiting for tasks to finish", map[string]interface{}{
					"timeout": m.stopTimeout.String(),
				})
			}
			return
		}
	}
}

// Reload stops everything, re-reads the asset configuration, reconstructs
// the engines and, if the manager was running, restarts. Not atomic with
// respect to concurrent status queries.
func (m *TraderManager) Reload(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	wasRunning := m.isRunning.Load()
	if wasRunning {
		m.stopLocked(ctx)
	}
	if err := m.loadEngines(ctx); err != nil {
		return err
	}
	if wasRunning {
		m.startLocked(ctx)
	}
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Configuration reloaded", map[string]interface{}{"engines": len(m.engines)})
	}
	return nil
}

// AddAsset constructs a new engine for the asset and, if the manager is
// running, submits it to the pool. Adding an existing symbol only warns.
func (m *TraderManager) AddAsset(ctx context.Context, asset domain.Asset) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, exists := m.engines[asset.Symbol]; exists {
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn(ctx, "Asset already managed", map[string]interface{}{"symbol": asset.Symbol})
		}
		return nil
	}

	eng, err := m.newEngine(asset)
	if err != nil {
		return err
	}
	m.engines[asset.Symbol] = eng

	// slots and runCtx are always live while the run flag is set; both are
	// created in startLocked and torn down with the flag in stopLocked.
	if m.isRunning.Load() {
		eng.Start()
		m.spawnLocked(m.runCtx, asset.Symbol, eng)
	}

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Asset added", map[string]interface{}{"symbol": asset.Symbol})
	}
	return nil
}

// RemoveAsset stops the asset's engine, waits (bounded) for its task to
// finish and discards it. Removing an unknown symbol only warns.
func (m *TraderManager) RemoveAsset(ctx context.Context, symbol string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	eng, exists := m.engines[symbol]
	if !exists {
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn(ctx, "Asset not managed", map[string]interface{}{"symbol": symbol})
		}
		return
	}

	eng.Stop(ctx)
	if done, ok := m.tasks[symbol]; ok {
		m.joinTasks(ctx, []chan struct{}{done})
		delete(m.tasks, symbol)
	}
	delete(m.engines, symbol)

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info(ctx, "Asset removed", map[string]interface{}{"symbol": symbol})
	}
}

// IsRunning reports whether the manager is running.
func (m *TraderManager) IsRunning() bool {
	return m.isRunning.Load()
}

// engineSnapshot copies the current engine set.
func (m *TraderManager) engineSnapshot() []*TraderEngine {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	engines := make([]*TraderEngine, 0, len(m.engines))
	for _, eng := range m.engines {
		engines = append(engines, eng)
	}
	return engines
}

// OverallStatus aggregates every engine's status with portfolio totals.
// total_profit_rate is zero when no engine reports a value.
func (m *TraderManager) OverallStatus(ctx context.Context) OverallStatus {
	m.opMu.Lock()
	engines := make(map[string]*TraderEngine, len(m.engines))
	for symbol, eng := range m.engines {
		engines[symbol] = eng
	}
	activeTasks := 0
	for _, done := range m.tasks {
		select {
		case <-done:
		default:
			activeTasks++
		}
	}
	m.opMu.Unlock()

	status := OverallStatus{
		Manager: ManagerStatus{
			IsRunning:    m.isRunning.Load(),
			TotalEngines: len(engines),
			ActiveTasks:  activeTasks,
			DryRun:       m.cfg.DryRun,
		},
		Engines: make(map[string]EngineStatus, len(engines)),
	}

	var totalValue, totalProfit float64
	for symbol, eng := range engines {
		es := eng.Status(ctx)
		status.Engines[symbol] = es
		if es.Portfolio.HasValuation {
			totalValue += es.Portfolio.CurrentValue
			totalProfit += es.Portfolio.Profit
		}
	}
	status.Manager.TotalValue = totalValue
	status.Manager.TotalProfit = totalProfit
	if totalValue > 0 {
		status.Manager.TotalProfitRate = totalProfit / totalValue * 100
	}
	return status
}
