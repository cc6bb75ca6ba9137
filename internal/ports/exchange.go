package ports

import (
	"context"

	"multiTraderBot/internal/domain"
)

// PriceSource supplies last-traded prices per symbol. Implementations may
// cache results for a short window (around five seconds).
type PriceSource interface {
	// GetPrice retrieves the current price for a single symbol.
	// Returns an error wrapping ErrPriceUnavailable when no price exists.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetPrices retrieves prices for several symbols in one call. Symbols
	// whose price could not be obtained are absent from the result; partial
	// failures are not an error.
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// OrderClient is the order capability of a live exchange. The executor
// delegates to it when dry-run mode is off.
type OrderClient interface {
	// SubmitOrder places a market order. Buys are placed by notional value
	// (quantity x price in the quote currency); sells by base quantity.
	SubmitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.Order, error)

	// CancelAll cancels all outstanding orders for the symbol. Best effort.
	CancelAll(ctx context.Context, symbol string) error
}
