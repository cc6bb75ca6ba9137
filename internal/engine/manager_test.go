package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiTraderBot/internal/domain"
)

func staticAssets(assets ...domain.Asset) func(ctx context.Context) ([]domain.Asset, error) {
	return func(ctx context.Context) ([]domain.Asset, error) {
		return assets, nil
	}
}

func newTestManager(t *testing.T, cfg ManagerConfig) *TraderManager {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	if cfg.StatusInterval == 0 {
		cfg.StatusInterval = time.Hour // keep the broadcaster quiet unless tested
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = time.Second
	}
	if cfg.MinOrderInterval == 0 {
		cfg.MinOrderInterval = time.Millisecond
	}
	cfg.DryRun = true
	m, err := NewTraderManager(context.Background(), cfg)
	require.NoError(t, err)
	return m
}

func TestManagerFailsOnUnreadableAssetList(t *testing.T) {
	_, err := NewTraderManager(context.Background(), ManagerConfig{
		LoadAssets: func(ctx context.Context) ([]domain.Asset, error) {
			return nil, errors.New("no such file")
		},
		Prices:   &mockPriceSource{prices: map[string]float64{}},
		Notifier: &mockNotifier{},
	})
	assert.Error(t, err)
}

func TestWorkerPoolBoundsConcurrentCycles(t *testing.T) {
	ctx := context.Background()
	prices := &mockPriceSource{
		prices: map[string]float64{"A/USDT": 1, "B/USDT": 2, "C/USDT": 3},
		delay:  10 * time.Millisecond,
	}
	m := newTestManager(t, ManagerConfig{
		LoadAssets: staticAssets(testAsset("A/USDT"), testAsset("B/USDT"), testAsset("C/USDT")),
		MaxWorkers: 2,
		Prices:     prices,
		Notifier:   &mockNotifier{},
	})

	m.Start(ctx)
	time.Sleep(150 * time.Millisecond)
	m.Stop(ctx)

	assert.LessOrEqual(t, prices.maxConcurrent(), 2, "pool bound must be respected")
	assert.Greater(t, prices.calls(), 3, "all engines must have cycled")

	status := m.OverallStatus(ctx)
	assert.False(t, status.Manager.IsRunning)
	assert.Equal(t, 0, status.Manager.ActiveTasks, "stop must join all tasks")
}

func TestStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, ManagerConfig{
		LoadAssets: staticAssets(testAsset("A/USDT")),
		Prices:     &mockPriceSource{prices: map[string]float64{"A/USDT": 1}},
		Notifier:   &mockNotifier{},
	})
	defer m.Stop(ctx)

	m.Start(ctx)
	m.Start(ctx) // second start only warns
	assert.True(t, m.IsRunning())
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, ManagerConfig{
		LoadAssets: staticAssets(testAsset("A/USDT")),
		Prices:     &mockPriceSource{prices: map[string]float64{"A/USDT": 1}},
		Notifier:   &mockNotifier{},
	})

	m.Start(ctx)
	m.Stop(ctx)
	m.Stop(ctx)
	assert.False(t, m.IsRunning())
}

func TestOverallStatusZeroRateWithoutValue(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, ManagerConfig{
		LoadAssets: staticAssets(testAsset("A/USDT"), testAsset("B/USDT")),
		Prices:     &mockPriceSource{prices: map[string]float64{"A/USDT": 1, "B/USDT": 2}},
		Notifier:   &mockNotifier{},
	})

	status := m.OverallStatus(ctx)
	assert.Equal(t, 2, status.Manager.TotalEngines)
	assert.Zero(t, status.Manager.TotalValue)
	assert.Zero(t, status.Manager.TotalProfit)
	assert.Zero(t, status.Manager.TotalProfitRate, "no valued engines means a zero overall rate")
	assert.Len(t, status.Engines, 2)
}

func TestAddAndRemoveAsset(t *testing.T) {
	ctx := context.Background()
	prices := &mockPriceSource{prices: map[string]float64{"A/USDT": 1, "B/USDT": 2}}
	m := newTestManager(t, ManagerConfig{
		LoadAssets: staticAssets(testAsset("A/USDT")),
		Prices:     prices,
		Notifier:   &mockNotifier{},
	})

	m.Start(ctx)
	defer m.Stop(ctx)

	require.NoError(t, m.AddAsset(ctx, testAsset("B/USDT")))
	status := m.OverallStatus(ctx)
	require.Contains(t, status.Engines, "B/USDT")
	assert.Equal(t, 2, status.Manager.TotalEngines)
	// The added engine joins the shared pool of the running manager.
	assert.True(t, status.Engines["B/USDT"].IsRunning)

	// Adding the same symbol again only warns.
	require.NoError(t, m.AddAsset(ctx, testAsset("B/USDT")))
	assert.Equal(t, 2, m.OverallStatus(ctx).Manager.TotalEngines)

	m.RemoveAsset(ctx, "B/USDT")
	status = m.OverallStatus(ctx)
	assert.NotContains(t, status.Engines, "B/USDT")
	assert.Equal(t, 1, status.Manager.TotalEngines)

	// Removing an unknown symbol only warns.
	m.RemoveAsset(ctx, "Z/USDT")
}

func TestReloadReplacesEngines(t *testing.T) {
	ctx := context.Background()
	prices := &mockPriceSource{prices: map[string]float64{"A/USDT": 1, "B/USDT": 2}}

	assets := []domain.Asset{testAsset("A/USDT")}
	loader := func(ctx context.Context) ([]domain.Asset, error) {
		return assets, nil
	}

	m := newTestManager(t, ManagerConfig{
		LoadAssets: loader,
		Prices:     prices,
		Notifier:   &mockNotifier{},
	})
	m.Start(ctx)
	defer m.Stop(ctx)

	assets = []domain.Asset{testAsset("B/USDT")}
	require.NoError(t, m.Reload(ctx))

	status := m.OverallStatus(ctx)
	assert.True(t, status.Manager.IsRunning, "reload must restart a running manager")
	assert.Contains(t, status.Engines, "B/USDT")
	assert.NotContains(t, status.Engines, "A/USDT")
}

func TestStatusBroadcaster(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	m := newTestManager(t, ManagerConfig{
		LoadAssets:     staticAssets(testAsset("A/USDT")),
		Prices:         &mockPriceSource{prices: map[string]float64{"A/USDT": 1}},
		Notifier:       notifier,
		StatusInterval: 10 * time.Millisecond,
	})

	m.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	m.Stop(ctx)

	assert.GreaterOrEqual(t, notifier.statusCount(), 2, "broadcaster must emit periodic status updates")
}
