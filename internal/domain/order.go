package domain

import "time"

// Order represents a single executed order. Orders are immutable once
// created; the executor appends them to its per-asset history.
type Order struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`

	// ExchangeOrderID holds the backend's order identifier when the order
	// was placed against a live exchange. Empty for simulated fills.
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`
}
