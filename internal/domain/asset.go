package domain

// SignalParams tunes the per-asset trigger. Fields are pointers so an
// explicit override of zero is distinguishable from an absent one; a nil
// field means "use the default" (see trigger.DefaultParams).
type SignalParams struct {
	BuyDropThreshold    *float64 `json:"buy_drop_threshold,omitempty"`
	SellProfitThreshold *float64 `json:"sell_profit_threshold,omitempty"`
	SellRatio           *float64 `json:"sell_ratio,omitempty"`
	MinIntervalMinutes  *int     `json:"min_interval_minutes,omitempty"`
	MaxPositionRatio    *float64 `json:"max_position_ratio,omitempty"`
}

// Asset describes one tradable symbol managed by exactly one trading engine.
// Immutable once an engine is constructed from it; changing an asset means
// reconstructing its engine.
type Asset struct {
	Symbol        string        `json:"symbol"`
	BaseCurrency  string        `json:"base_currency"`
	QuoteCurrency string        `json:"quote_currency"`
	TradeAmount   float64       `json:"trade_amount"`
	Signal        *SignalParams `json:"signal,omitempty"`
}
