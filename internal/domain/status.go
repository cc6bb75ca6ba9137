package domain

// PortfolioStatus is a point-in-time snapshot of a portfolio's cost-basis
// state. The valuation fields are populated only when a current price was
// supplied and the portfolio holds a position; HasValuation reports that.
type PortfolioStatus struct {
	Symbol      string  `json:"symbol"`
	Holdings    float64 `json:"holdings"`
	AvgPrice    float64 `json:"avg_price"`
	TotalCost   float64 `json:"total_cost"`
	TradesCount int     `json:"trades_count"`

	HasValuation bool    `json:"-"`
	CurrentPrice float64 `json:"current_price,omitempty"`
	CurrentValue float64 `json:"current_value,omitempty"`
	Profit       float64 `json:"profit,omitempty"`
	ProfitRate   float64 `json:"profit_rate,omitempty"`
}
