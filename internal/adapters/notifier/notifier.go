package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

const defaultHistorySize = 100

// Sink delivers a formatted notification to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, n domain.Notification) error
}

// Notifier implements ports.Notifier by fanning every event out to the
// configured sinks. Delivery is best effort: a failing sink is logged and
// never interrupts the trading cycle. A bounded in-memory history keeps the
// most recent notifications for status inspection.
type Notifier struct {
	sinks  []Sink
	logger ports.Logger

	mu      sync.Mutex
	history []domain.Notification
	maxSize int
}

// New creates a fan-out notifier over the given sinks.
func New(logger ports.Logger, sinks ...Sink) *Notifier {
	return &Notifier{
		sinks:   sinks,
		logger:  logger,
		maxSize: defaultHistorySize,
	}
}

func (n *Notifier) dispatch(ctx context.Context, notification domain.Notification) {
	n.mu.Lock()
	n.history = append(n.history, notification)
	if len(n.history) > n.maxSize {
		n.history = n.history[len(n.history)-n.maxSize:]
	}
	n.mu.Unlock()

	for _, sink := range n.sinks {
		if err := sink.Send(ctx, notification); err != nil && n.logger != nil {
			n.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{
				"sink":   sink.Name(),
				"type":   string(notification.Type),
				"symbol": notification.Symbol,
				"reason": err.Error(),
			})
		}
	}
}

// SendTrade emits a TRADE notification for an executed order.
func (n *Notifier) SendTrade(ctx context.Context, order *domain.Order, status domain.PortfolioStatus) {
	msg := fmt.Sprintf("%s %f %s @ %f (holdings %f, avg price %f)",
		strings.ToUpper(string(order.Side)), order.Quantity, order.Symbol, order.Price,
		status.Holdings, status.AvgPrice)
	n.dispatch(ctx, domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifyTrade,
		Symbol:    order.Symbol,
		Message:   msg,
	})
}

// SendSignal emits a SIGNAL notification for a buy or sell decision.
func (n *Notifier) SendSignal(ctx context.Context, symbol string, action domain.Action, price float64, reason string) {
	msg := fmt.Sprintf("%s signal @ %f: %s", strings.ToUpper(string(action)), price, reason)
	n.dispatch(ctx, domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifySignal,
		Symbol:    symbol,
		Message:   msg,
	})
}

// SendError emits an ERROR notification.
func (n *Notifier) SendError(ctx context.Context, symbol, msg string) {
	n.dispatch(ctx, domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifyError,
		Symbol:    symbol,
		Message:   msg,
	})
}

// SendStatus emits a STATUS notification with the portfolio snapshot.
func (n *Notifier) SendStatus(ctx context.Context, status domain.PortfolioStatus, currentPrice float64) {
	var msg string
	if status.HasValuation {
		msg = fmt.Sprintf("holdings %f @ avg %f, price %f, value %f, profit %f (%.2f%%)",
			status.Holdings, status.AvgPrice, currentPrice, status.CurrentValue,
			status.Profit, status.ProfitRate)
	} else {
		msg = fmt.Sprintf("holdings %f @ avg %f, price %f", status.Holdings, status.AvgPrice, currentPrice)
	}
	n.dispatch(ctx, domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifyStatus,
		Symbol:    status.Symbol,
		Message:   msg,
	})
}

// History returns a copy of the retained notifications, oldest first.
func (n *Notifier) History() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.history))
	copy(out, n.history)
	return out
}
