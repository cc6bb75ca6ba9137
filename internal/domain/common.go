package domain

// Side represents the side of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Action is the per-cycle decision produced by the trigger.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// OrderStatus represents the execution state of an order.
// Simulated orders fill immediately; there is no partial-fill model.
type OrderStatus string

const (
	OrderFilled OrderStatus = "filled"
)
