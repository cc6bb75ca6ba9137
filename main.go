package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"multiTraderBot/config"
	"multiTraderBot/internal/adapters/binanceclient"
	"multiTraderBot/internal/adapters/logger"
	"multiTraderBot/internal/adapters/notifier"
	"multiTraderBot/internal/adapters/sqlite"
	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/engine"
	"multiTraderBot/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Order Journal (Database Adapter)
	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize order journal")
		log.Fatalf("FATAL: Failed to initialize order journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing order journal")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	// The client always serves prices; it only places orders in live mode.
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	var orderClient ports.OrderClient
	if !cfg.DryRun {
		orderClient = binanceClient
	}

	// 5. Initialize Notifier
	appNotifier, err := buildNotifier(cfg, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize notifier")
		log.Fatalf("FATAL: Failed to initialize notifier: %v", err)
	}

	// 6. Initialize Trader Manager
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := engine.NewTraderManager(ctx, engine.ManagerConfig{
		LoadAssets: func(ctx context.Context) ([]domain.Asset, error) {
			return config.LoadAssets(ctx, cfg.AssetsFile)
		},
		DryRun:           cfg.DryRun,
		PollInterval:     cfg.PollInterval,
		StatusInterval:   cfg.StatusInterval,
		MaxWorkers:       cfg.MaxWorkers,
		MinOrderInterval: cfg.MinOrderInterval,
		Prices:           binanceClient,
		Client:           orderClient,
		Journal:          journal,
		Notifier:         appNotifier,
		Logger:           appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trader manager")
		log.Fatalf("FATAL: Failed to initialize trader manager: %v", err)
	}

	// 7. Run until interrupted
	manager.Start(ctx)
	appLogger.Info(ctx, "Trader manager started", map[string]interface{}{
		"dryRun":  cfg.DryRun,
		"testnet": cfg.IsTestnet,
	})

	supervise(ctx, manager, appLogger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	manager.Stop(shutdownCtx)
	appLogger.Info(shutdownCtx, "Application finished gracefully.")
}

// supervise logs an overall status line every minute until the run context
// is cancelled.
func supervise(ctx context.Context, manager *engine.TraderManager, appLogger ports.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			appLogger.Info(context.Background(), "Shutdown signal received")
			return
		case <-ticker.C:
			status := manager.OverallStatus(ctx)
			appLogger.Info(ctx, "Overall status", map[string]interface{}{
				"engines":     status.Manager.TotalEngines,
				"activeTasks": status.Manager.ActiveTasks,
				"totalValue":  status.Manager.TotalValue,
				"totalProfit": status.Manager.TotalProfit,
				"profitRate":  status.Manager.TotalProfitRate,
			})
		}
	}
}

func buildNotifier(cfg *config.Config, appLogger ports.Logger) (*notifier.Notifier, error) {
	sinks := []notifier.Sink{notifier.NewConsoleSink(nil)}

	fileSink, err := notifier.NewFileSink(cfg.NotificationDir)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, fileSink)

	if cfg.WebhookURL != "" {
		webhookSink, err := notifier.NewWebhookSink(cfg.WebhookURL, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, webhookSink)
	}

	if cfg.TelegramBotToken != "" {
		telegramSink, err := notifier.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, telegramSink)
	}

	return notifier.New(appLogger, sinks...), nil
}
