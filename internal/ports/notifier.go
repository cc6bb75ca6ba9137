package ports

import (
	"context"

	"multiTraderBot/internal/domain"
)

// Notifier delivers structured events about trading activity. Delivery is
// fire-and-forget: implementations log failures and never return them, so a
// broken sink cannot affect trading state.
type Notifier interface {
	// SendTrade reports a completed trade together with the post-trade
	// portfolio snapshot.
	SendTrade(ctx context.Context, order *domain.Order, status domain.PortfolioStatus)

	// SendSignal reports a buy/sell decision and the price that fired it.
	SendSignal(ctx context.Context, symbol string, action domain.Action, price float64, reason string)

	// SendError reports an engine-level failure.
	SendError(ctx context.Context, symbol, msg string)

	// SendStatus reports a periodic portfolio status update.
	SendStatus(ctx context.Context, status domain.PortfolioStatus, currentPrice float64)
}
