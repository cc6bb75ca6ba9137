package portfolio

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestRecordBuyAveragesCostBasis(t *testing.T) {
	ctx := context.Background()
	p := New("BTC/USDT", nil)

	p.RecordBuy(ctx, 1.0, 100)
	p.RecordBuy(ctx, 1.0, 200)

	status := p.Status(0)
	assert.InDelta(t, 2.0, status.Holdings, epsilon)
	assert.InDelta(t, 150.0, status.AvgPrice, epsilon)
	assert.InDelta(t, 300.0, status.TotalCost, epsilon)
	assert.Equal(t, 2, status.TradesCount)
}

func TestRecordSellRealizesProfitAgainstAvgPrice(t *testing.T) {
	ctx := context.Background()
	p := New("BTC/USDT", nil)

	p.RecordBuy(ctx, 1.0, 100)
	p.RecordBuy(ctx, 1.0, 200)
	require.True(t, p.RecordSell(ctx, 1.0, 150))

	status := p.Status(0)
	assert.InDelta(t, 1.0, status.Holdings, epsilon)
	assert.InDelta(t, 150.0, status.AvgPrice, epsilon)
	// Selling at exactly the average price realizes zero profit and leaves
	// the remaining cost basis consistent.
	assert.InDelta(t, 150.0, status.TotalCost, epsilon)
	assert.Equal(t, 3, status.TradesCount)
}

func TestRecordSellRejectsOversell(t *testing.T) {
	ctx := context.Background()
	p := New("ETH/USDT", nil)

	p.RecordBuy(ctx, 0.5, 2000)
	before := p.Status(0)

	assert.False(t, p.RecordSell(ctx, 1.0, 2500))

	after := p.Status(0)
	assert.Equal(t, before, after, "a rejected sell must not mutate any field")
}

func TestCostBasisInvariantOverRandomBuys(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	p := New("ADA/USDT", nil)

	for i := 0; i < 200; i++ {
		qty := rng.Float64()*5 + 0.001
		price := rng.Float64()*100 + 1
		p.RecordBuy(ctx, qty, price)

		status := p.Status(0)
		assert.InDelta(t, status.TotalCost, status.AvgPrice*status.Holdings, 1e-6)
	}
}

func TestProfitLoss(t *testing.T) {
	ctx := context.Background()
	p := New("BTC/USDT", nil)

	profit, rate := p.ProfitLoss(100)
	assert.Zero(t, profit)
	assert.Zero(t, rate)

	p.RecordBuy(ctx, 2.0, 100)

	profit, rate = p.ProfitLoss(110)
	assert.InDelta(t, 20.0, profit, epsilon)
	assert.InDelta(t, 10.0, rate, epsilon)

	profit, rate = p.ProfitLoss(90)
	assert.InDelta(t, -20.0, profit, epsilon)
	assert.InDelta(t, -10.0, rate, epsilon)
}

func TestStatusValuationFields(t *testing.T) {
	ctx := context.Background()
	p := New("BTC/USDT", nil)

	// No position: valuation fields stay unset even with a price.
	status := p.Status(123.45)
	assert.False(t, status.HasValuation)
	assert.Zero(t, status.CurrentValue)

	p.RecordBuy(ctx, 1.5, 100)

	status = p.Status(120)
	require.True(t, status.HasValuation)
	assert.InDelta(t, 120.0, status.CurrentPrice, epsilon)
	assert.InDelta(t, 180.0, status.CurrentValue, epsilon)
	assert.InDelta(t, 30.0, status.Profit, epsilon)
	assert.InDelta(t, 20.0, status.ProfitRate, epsilon)
}
