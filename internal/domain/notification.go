package domain

import "time"

// NotificationType classifies a notification event.
type NotificationType string

const (
	NotifyTrade  NotificationType = "TRADE"
	NotifySignal NotificationType = "SIGNAL"
	NotifyError  NotificationType = "ERROR"
	NotifyStatus NotificationType = "STATUS"
)

// Notification is a structured event produced for the notification sinks.
// Delivery is fire-and-forget; failures never affect trading state.
type Notification struct {
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
	Symbol    string           `json:"symbol"`
	Message   string           `json:"message"`
}
