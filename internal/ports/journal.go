package ports

import (
	"context"

	"multiTraderBot/internal/domain"
)

// OrderJournal is an append-only audit log of executed orders. It is never
// read back into trading state; ledger and history live for the process
// lifetime only.
type OrderJournal interface {
	// RecordOrder appends an executed order to the journal.
	RecordOrder(ctx context.Context, order *domain.Order) error

	// RecentBySymbol retrieves the most recent journaled orders for a
	// symbol, newest first, up to limit.
	RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Order, error)

	// Close releases the underlying storage.
	Close() error
}
