package trigger

import (
	"context"
	"sync"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/portfolio"
	"multiTraderBot/internal/ports"
)

const (
	// historyCapacity bounds the price history; oldest samples are evicted.
	historyCapacity = 100
	// recentWindow is the trailing sub-window evaluated by the buy rule and
	// the signal-strength calculation.
	recentWindow = 10
)

// Params tunes the per-asset decision rules.
type Params struct {
	// BuyDropThreshold is the fractional decline from the recent-window
	// high at which a buy fires (negative; -0.02 means a 2% drop).
	BuyDropThreshold float64
	// SellProfitThreshold is the unrealized profit fraction at or above
	// which a sell fires (0 means sell at break-even or better).
	SellProfitThreshold float64
	// SellRatio is the fraction of holdings sold per sell signal.
	SellRatio float64
	// MinIntervalMinutes is advisory only; order spacing is enforced by the
	// executor's own throttle.
	MinIntervalMinutes int
	// MaxPositionRatio is advisory only and not enforced by Decide.
	MaxPositionRatio float64
}

// DefaultParams returns the default decision parameters.
func DefaultParams() Params {
	return Params{
		BuyDropThreshold:    -0.02,
		SellProfitThreshold: 0.0,
		SellRatio:           0.2,
		MinIntervalMinutes:  5,
		MaxPositionRatio:    0.8,
	}
}

// paramsFromSignal merges per-asset overrides onto the defaults. A nil field
// keeps the default; an explicit zero is honored.
func paramsFromSignal(sp *domain.SignalParams) Params {
	p := DefaultParams()
	if sp == nil {
		return p
	}
	if sp.BuyDropThreshold != nil {
		p.BuyDropThreshold = *sp.BuyDropThreshold
	}
	if sp.SellProfitThreshold != nil {
		p.SellProfitThreshold = *sp.SellProfitThreshold
	}
	if sp.SellRatio != nil {
		p.SellRatio = *sp.SellRatio
	}
	if sp.MinIntervalMinutes != nil {
		p.MinIntervalMinutes = *sp.MinIntervalMinutes
	}
	if sp.MaxPositionRatio != nil {
		p.MaxPositionRatio = *sp.MaxPositionRatio
	}
	return p
}

// Trigger decides buy/sell/hold for one asset over a bounded price-history
// window. The decision is re-derived every cycle; the only state carried
// across cycles is the price history and the last-action memory.
type Trigger struct {
	mu sync.Mutex

	symbol          string
	params          Params
	priceHistory    []float64
	lastAction      domain.Action
	lastActionPrice float64

	logger ports.Logger
}

// New creates a trigger for the symbol with defaults merged over the
// optional per-asset overrides.
func New(symbol string, signal *domain.SignalParams, logger ports.Logger) *Trigger {
	return &Trigger{
		symbol:       symbol,
		params:       paramsFromSignal(signal),
		priceHistory: make([]float64, 0, historyCapacity),
		logger:       logger,
	}
}

// Params returns the effective decision parameters.
func (t *Trigger) Params() Params {
	return t.params
}

// Observe appends a price to the history, evicting the oldest sample beyond
// capacity.
func (t *Trigger) Observe(price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(price)
}

func (t *Trigger) observeLocked(price float64) {
	t.priceHistory = append(t.priceHistory, price)
	if len(t.priceHistory) > historyCapacity {
		t.priceHistory = t.priceHistory[len(t.priceHistory)-historyCapacity:]
	}
}

// HistoryLen returns the number of observed prices.
func (t *Trigger) HistoryLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.priceHistory)
}

// EvaluateBuy reports whether the dip rule fires: the current price has
// dropped from the recent-window high by at least the configured threshold.
// Requires a full recent window of samples.
func (t *Trigger) EvaluateBuy(ctx context.Context, price float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluateBuyLocked(ctx, price)
}

func (t *Trigger) evaluateBuyLocked(ctx context.Context, price float64) bool {
	if len(t.priceHistory) < recentWindow {
		return false
	}
	recentHigh, _ := t.recentRangeLocked()
	dropRate := (price - recentHigh) / recentHigh
	if dropRate <= t.params.BuyDropThreshold {
		if t.logger != nil {
			t.logger.Info(ctx, "Buy signal", map[string]interface{}{
				"symbol":   t.symbol,
				"dropRate": dropRate,
			})
		}
		return true
	}
	return false
}

// EvaluateSell reports whether the profit-taking rule fires: the position's
// unrealized profit rate is at or above the configured threshold. Never
// fires on an empty position.
func (t *Trigger) EvaluateSell(ctx context.Context, price float64, pf *portfolio.Portfolio) bool {
	if pf.Holdings() <= 0 {
		return false
	}
	_, profitRate := pf.ProfitLoss(price)
	if profitRate >= t.params.SellProfitThreshold*100 {
		if t.logger != nil {
			t.logger.Info(ctx, "Sell signal", map[string]interface{}{
				"symbol":     t.symbol,
				"profitRate": profitRate,
			})
		}
		return true
	}
	return false
}

// Decide observes the price and returns the cycle's action. Sell is
// evaluated before buy: a state satisfying both resolves to sell. The
// decision and its price are remembered as the last action.
func (t *Trigger) Decide(ctx context.Context, price float64, pf *portfolio.Portfolio) domain.Action {
	t.mu.Lock()
	t.observeLocked(price)
	t.mu.Unlock()

	if t.EvaluateSell(ctx, price, pf) {
		t.recordAction(domain.ActionSell, price)
		return domain.ActionSell
	}
	if t.EvaluateBuy(ctx, price) {
		t.recordAction(domain.ActionBuy, price)
		return domain.ActionBuy
	}
	return domain.ActionHold
}

func (t *Trigger) recordAction(action domain.Action, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAction = action
	t.lastActionPrice = price
}

// LastAction returns the most recent buy/sell decision and the price at
// which it fired. The action is empty until a signal has fired.
func (t *Trigger) LastAction() (domain.Action, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAction, t.lastActionPrice
}

// SignalStrength maps the price's position within the recent window onto
// [0,1]; values near 1 mean the price sits near the window low (stronger
// buy pressure). Returns 0 for a short or flat window.
func (t *Trigger) SignalStrength(price float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.priceHistory) < recentWindow {
		return 0
	}
	recentHigh, recentLow := t.recentRangeLocked()
	if recentHigh == recentLow {
		return 0
	}
	position := (price - recentLow) / (recentHigh - recentLow)
	return 1.0 - position
}

// recentRangeLocked returns the high and low of the trailing window.
func (t *Trigger) recentRangeLocked() (high, low float64) {
	window := t.priceHistory[len(t.priceHistory)-recentWindow:]
	high, low = window[0], window[0]
	for _, p := range window[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low
}
