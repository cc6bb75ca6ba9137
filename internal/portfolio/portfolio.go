package portfolio

import (
	"context"
	"sync"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

// Portfolio tracks per-asset cost-basis accounting: holdings, weighted
// average entry price and realized/unrealized profit. It is mutated only by
// its owning engine's task, but snapshots may be read concurrently by status
// queries, so all access is guarded.
//
// Invariant: avgPrice * holdings == totalCost (within floating-point
// tolerance) after every mutation, and holdings never goes negative.
type Portfolio struct {
	mu sync.Mutex

	symbol      string
	holdings    float64
	avgPrice    float64
	totalCost   float64
	totalSold   float64
	tradesCount int

	logger ports.Logger
}

// New creates an empty portfolio for the given symbol.
func New(symbol string, logger ports.Logger) *Portfolio {
	return &Portfolio{symbol: symbol, logger: logger}
}

// Symbol returns the asset symbol this portfolio tracks.
func (p *Portfolio) Symbol() string {
	return p.symbol
}

// Holdings returns the currently held quantity.
func (p *Portfolio) Holdings() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings
}

// RecordBuy adds a buy to the cost basis. The weighted average price is
// recomputed over the combined position. Always succeeds for positive inputs.
func (p *Portfolio) RecordBuy(ctx context.Context, quantity, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost := quantity * price
	if p.holdings > 0 {
		p.totalCost += cost
		p.avgPrice = p.totalCost / (p.holdings + quantity)
	} else {
		p.avgPrice = price
		p.totalCost = cost
	}
	p.holdings += quantity
	p.tradesCount++

	if p.logger != nil {
		p.logger.Info(ctx, "Buy recorded", map[string]interface{}{
			"symbol":   p.symbol,
			"quantity": quantity,
			"price":    price,
			"avgPrice": p.avgPrice,
		})
	}
}

// RecordSell removes quantity from the position at the given price. It fails
// without mutating anything when the requested quantity exceeds holdings.
// Realized profit for the sell is proceeds minus the average-cost basis of
// the sold quantity.
func (p *Portfolio) RecordSell(ctx context.Context, quantity, price float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity > p.holdings {
		if p.logger != nil {
			p.logger.Warn(ctx, "Sell rejected: quantity exceeds holdings", map[string]interface{}{
				"symbol":   p.symbol,
				"holdings": p.holdings,
				"quantity": quantity,
			})
		}
		return false
	}

	proceeds := quantity * price
	soldCost := quantity * p.avgPrice

	p.holdings -= quantity
	p.totalSold += proceeds
	p.totalCost -= soldCost
	p.tradesCount++

	profit := proceeds - soldCost
	profitRate := 0.0
	if soldCost > 0 {
		profitRate = profit / soldCost * 100
	}
	if p.logger != nil {
		p.logger.Info(ctx, "Sell recorded", map[string]interface{}{
			"symbol":     p.symbol,
			"quantity":   quantity,
			"price":      price,
			"profit":     profit,
			"profitRate": profitRate,
		})
	}
	return true
}

// CurrentValue returns the market value of the position at currentPrice.
func (p *Portfolio) CurrentValue(currentPrice float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings * currentPrice
}

// ProfitLoss returns the unrealized profit and profit rate (percent) at the
// given price. Returns zeros for an empty position or a zero cost basis.
func (p *Portfolio) ProfitLoss(currentPrice float64) (profit, profitRate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profitLossLocked(currentPrice)
}

func (p *Portfolio) profitLossLocked(currentPrice float64) (float64, float64) {
	if p.holdings == 0 {
		return 0, 0
	}
	remainingCost := p.holdings * p.avgPrice
	profit := p.holdings*currentPrice - remainingCost
	if remainingCost <= 0 {
		return profit, 0
	}
	return profit, profit / remainingCost * 100
}

// Status returns a snapshot of the portfolio. When currentPrice is positive
// and a position is held, the snapshot additionally carries the valuation
// fields (current price/value, unrealized profit and rate).
func (p *Portfolio) Status(currentPrice float64) domain.PortfolioStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := domain.PortfolioStatus{
		Symbol:      p.symbol,
		Holdings:    p.holdings,
		AvgPrice:    p.avgPrice,
		TotalCost:   p.totalCost,
		TradesCount: p.tradesCount,
	}
	if currentPrice > 0 && p.holdings > 0 {
		profit, profitRate := p.profitLossLocked(currentPrice)
		status.HasValuation = true
		status.CurrentPrice = currentPrice
		status.CurrentValue = p.holdings * currentPrice
		status.Profit = profit
		status.ProfitRate = profitRate
	}
	return status
}
