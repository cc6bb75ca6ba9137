package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

// Journal implements the ports.OrderJournal interface using SQLite. It is an
// append-only audit log; nothing in the trading path ever reads it back.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite order journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite order journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/orders.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver works best with a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "Order journal opened", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		status TEXT NOT NULL,
		exchange_order_id TEXT NOT NULL DEFAULT '',
		executed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol_executed_at ON orders (symbol, executed_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// RecordOrder appends an executed order to the journal.
func (j *Journal) RecordOrder(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return fmt.Errorf("%w: nil order", ports.ErrJournalWriteFailed)
	}
	const query = `
	INSERT INTO orders (order_id, symbol, side, quantity, price, status, exchange_order_id, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		order.ID,
		order.Symbol,
		string(order.Side),
		order.Quantity,
		order.Price,
		string(order.Status),
		order.ExchangeOrderID,
		order.Timestamp,
	)
	if err != nil {
		err = fmt.Errorf("%w: %v", ports.ErrJournalWriteFailed, err)
		j.logger.Error(ctx, err, "Failed to journal order", map[string]interface{}{
			"symbol":  order.Symbol,
			"orderID": order.ID,
		})
		return err
	}
	return nil
}

// RecentBySymbol retrieves the most recent journaled orders for a symbol,
// newest first.
func (j *Journal) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
	SELECT order_id, symbol, side, quantity, price, status, exchange_order_id, executed_at
	FROM orders
	WHERE symbol = ?
	ORDER BY executed_at DESC, id DESC
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for %s: %w", symbol, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var (
			o      domain.Order
			side   string
			status string
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &o.Quantity, &o.Price, &status, &o.ExchangeOrderID, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating journal rows: %w", err)
	}
	return orders, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing order journal")
		return j.db.Close()
	}
	return nil
}
