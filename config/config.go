package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"multiTraderBot/internal/adapters/logger"
	"multiTraderBot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Execution mode. Dry-run simulates fills locally and never talks to the
	// exchange order endpoints.
	DryRun bool

	// Scheduling
	PollInterval     time.Duration
	StatusInterval   time.Duration
	MinOrderInterval time.Duration
	MaxWorkers       int

	// Asset list
	AssetsFile string

	// Database
	DBPath string

	// Notifications
	NotificationDir  string
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Default to dry-run so a missing .env can never place live orders.
	cfg.DryRun = getEnvAsBool("DRY_RUN", true)
	if !cfg.DryRun {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when DRY_RUN is false")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when DRY_RUN is false")
		}
	}

	// Scheduling
	pollSeconds := getEnvAsInt("POLLING_INTERVAL", 10)
	if pollSeconds <= 0 {
		errs = append(errs, "POLLING_INTERVAL must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	statusSeconds := getEnvAsInt("STATUS_UPDATE_INTERVAL", 300)
	if statusSeconds <= 0 {
		errs = append(errs, "STATUS_UPDATE_INTERVAL must be positive")
	}
	cfg.StatusInterval = time.Duration(statusSeconds) * time.Second

	minOrderSeconds := getEnvAsInt("MIN_ORDER_INTERVAL", 30)
	if minOrderSeconds <= 0 {
		errs = append(errs, "MIN_ORDER_INTERVAL must be positive")
	}
	cfg.MinOrderInterval = time.Duration(minOrderSeconds) * time.Second

	cfg.MaxWorkers = getEnvAsInt("MAX_WORKERS", 0) // 0 means one worker per asset
	if cfg.MaxWorkers < 0 {
		errs = append(errs, "MAX_WORKERS cannot be negative")
	}

	// Asset list
	cfg.AssetsFile = getEnv("ASSETS_FILE", "./config/assets.json")
	if cfg.AssetsFile == "" {
		errs = append(errs, "ASSETS_FILE must be set")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/orders.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Notifications
	cfg.NotificationDir = getEnv("NOTIFICATION_DIR", "./logs")
	cfg.WebhookURL = getEnv("WEBHOOK_URL", "")
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	if (cfg.TelegramBotToken == "") != (cfg.TelegramChatID == "") {
		errs = append(errs, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// LoadAssets reads the asset list from a JSON file. Every asset needs a
// symbol and a positive trade amount; per-asset signal overrides are
// optional.
func LoadAssets(ctx context.Context, path string) ([]domain.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets file '%s': %w", path, err)
	}

	var assets []domain.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse assets file '%s': %w", path, err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("assets file '%s' contains no assets", path)
	}

	var errs []string
	seen := make(map[string]bool, len(assets))
	for i, a := range assets {
		if a.Symbol == "" {
			errs = append(errs, fmt.Sprintf("asset %d: symbol is required", i))
			continue
		}
		if seen[a.Symbol] {
			errs = append(errs, fmt.Sprintf("asset %d: duplicate symbol %s", i, a.Symbol))
		}
		seen[a.Symbol] = true
		if a.TradeAmount <= 0 {
			errs = append(errs, fmt.Sprintf("asset %s: trade amount must be positive", a.Symbol))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("asset validation failed: %s", strings.Join(errs, "; "))
	}

	return assets, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
