package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

type mockOrderClient struct {
	submitErr error
	cancelErr error
	submitted []domain.Side
}

func (m *mockOrderClient) SubmitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.Order, error) {
	m.submitted = append(m.submitted, side)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &domain.Order{
		ID:              "x-1",
		Symbol:          symbol,
		Side:            side,
		Quantity:        quantity,
		Price:           price,
		Status:          domain.OrderFilled,
		Timestamp:       time.Now().UTC(),
		ExchangeOrderID: "42",
	}, nil
}

func (m *mockOrderClient) CancelAll(ctx context.Context, symbol string) error {
	return m.cancelErr
}

func newDryRunExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := New(Config{Symbol: "BTC/USDT", TradeAmount: 0.01, DryRun: true})
	require.NoError(t, err)
	return e
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{TradeAmount: 1, DryRun: true})
	assert.Error(t, err)

	_, err = New(Config{Symbol: "BTC/USDT", DryRun: true})
	assert.Error(t, err)

	_, err = New(Config{Symbol: "BTC/USDT", TradeAmount: 1, DryRun: false})
	assert.Error(t, err, "live mode requires an order client")
}

func TestBuyFillsSimulatedOrder(t *testing.T) {
	ctx := context.Background()
	e := newDryRunExecutor(t)

	order, err := e.Buy(ctx, 50000)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.Buy, order.Side)
	assert.Equal(t, domain.OrderFilled, order.Status)
	assert.InDelta(t, 0.01, order.Quantity, 1e-9)
	assert.InDelta(t, 50000.0, order.Price, 1e-9)
	assert.NotEmpty(t, order.ID)
	assert.Len(t, e.OrderHistory(), 1)
}

func TestSecondOrderWithinIntervalIsThrottled(t *testing.T) {
	ctx := context.Background()
	e := newDryRunExecutor(t)

	_, err := e.Buy(ctx, 50000)
	require.NoError(t, err)

	order, err := e.Buy(ctx, 49000)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ports.ErrOrderThrottled)
	assert.Len(t, e.OrderHistory(), 1, "a throttled order must not touch history")
	assert.False(t, e.CanPlace())
}

func TestThrottleSpansSides(t *testing.T) {
	ctx := context.Background()
	e := newDryRunExecutor(t)

	_, err := e.Buy(ctx, 50000)
	require.NoError(t, err)

	order, err := e.Sell(ctx, 0.005, 51000)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ports.ErrOrderThrottled)
}

func TestFailedSubmissionKeepsSlotAndHistory(t *testing.T) {
	ctx := context.Background()
	client := &mockOrderClient{submitErr: errors.New("exchange down")}
	e, err := New(Config{Symbol: "BTC/USDT", TradeAmount: 0.01, DryRun: false, Client: client})
	require.NoError(t, err)

	order, err := e.Buy(ctx, 50000)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ports.ErrOrderPlacementFailed)
	assert.Empty(t, e.OrderHistory())
	assert.True(t, e.CanPlace(), "a failed submission must leave the gate open")

	// The failed attempt left the gate open, so the next one goes straight
	// through without waiting out the interval.
	client.submitErr = nil
	order, err = e.Buy(ctx, 50000)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "42", order.ExchangeOrderID)
}

func TestShortIntervalReopensGate(t *testing.T) {
	ctx := context.Background()
	e, err := New(Config{
		Symbol:           "BTC/USDT",
		TradeAmount:      0.01,
		DryRun:           true,
		MinOrderInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = e.Buy(ctx, 50000)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = e.Sell(ctx, 0.005, 51000)
	require.NoError(t, err)
	assert.Len(t, e.OrderHistory(), 2)
}

func TestLastOrder(t *testing.T) {
	ctx := context.Background()
	e, err := New(Config{
		Symbol:           "BTC/USDT",
		TradeAmount:      0.01,
		DryRun:           true,
		MinOrderInterval: time.Millisecond,
	})
	require.NoError(t, err)

	assert.Nil(t, e.LastOrder())

	_, err = e.Buy(ctx, 50000)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = e.Sell(ctx, 0.002, 52000)
	require.NoError(t, err)

	last := e.LastOrder()
	require.NotNil(t, last)
	assert.Equal(t, domain.Sell, last.Side)
}
