package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun, "dry-run must be the default")
	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 300*time.Second, cfg.StatusInterval)
	assert.Equal(t, 30*time.Second, cfg.MinOrderInterval)
	assert.Equal(t, 0, cfg.MaxWorkers)
	assert.Equal(t, "./config/assets.json", cfg.AssetsFile)
}

func TestLoadConfigLiveModeRequiresKeys(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BINANCE_API_KEY")
}

func TestLoadConfigTelegramPairValidation(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadAssets(t *testing.T) {
	path := writeAssets(t, `[
		{"symbol": "BTC/USDT", "base_currency": "BTC", "quote_currency": "USDT", "trade_amount": 0.001},
		{"symbol": "ETH/USDT", "base_currency": "ETH", "quote_currency": "USDT", "trade_amount": 0.01,
		 "signal": {"sell_ratio": 0.5}}
	]`)

	assets, err := LoadAssets(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "BTC/USDT", assets[0].Symbol)
	require.NotNil(t, assets[1].Signal)
	require.NotNil(t, assets[1].Signal.SellRatio)
	assert.InDelta(t, 0.5, *assets[1].Signal.SellRatio, 1e-9)
	assert.Nil(t, assets[1].Signal.BuyDropThreshold, "absent overrides stay unset")
}

func TestLoadAssetsRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", `[]`},
		{"missing symbol", `[{"trade_amount": 0.1}]`},
		{"non-positive trade amount", `[{"symbol": "BTC/USDT", "trade_amount": 0}]`},
		{"duplicate symbol", `[
			{"symbol": "BTC/USDT", "trade_amount": 0.1},
			{"symbol": "BTC/USDT", "trade_amount": 0.2}
		]`},
		{"malformed json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAssets(t, tt.content)
			_, err := LoadAssets(context.Background(), path)
			assert.Error(t, err)
		})
	}
}

func TestLoadAssetsMissingFile(t *testing.T) {
	_, err := LoadAssets(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
