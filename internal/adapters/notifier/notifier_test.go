package notifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiTraderBot/internal/domain"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:        "o-1",
		Symbol:    "BTC/USDT",
		Side:      domain.Buy,
		Quantity:  0.01,
		Price:     50000,
		Status:    domain.OrderFilled,
		Timestamp: time.Now().UTC(),
	}
}

func TestFanOutDeliversToAllSinks(t *testing.T) {
	ctx := context.Background()
	a, b := &recordingSink{}, &recordingSink{}
	n := New(nil, a, b)

	n.SendTrade(ctx, sampleOrder(), domain.PortfolioStatus{Symbol: "BTC/USDT", Holdings: 0.01, AvgPrice: 50000})

	require.Len(t, a.notifications(), 1)
	require.Len(t, b.notifications(), 1)
	assert.Equal(t, domain.NotifyTrade, a.notifications()[0].Type)
	assert.Equal(t, "BTC/USDT", a.notifications()[0].Symbol)
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	broken := &recordingSink{err: errors.New("sink down")}
	healthy := &recordingSink{}
	n := New(nil, broken, healthy)

	n.SendError(ctx, "BTC/USDT", "something broke")

	assert.Len(t, healthy.notifications(), 1)
}

func TestHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	n := New(nil)

	for i := 0; i < defaultHistorySize+20; i++ {
		n.SendError(ctx, "BTC/USDT", "event")
	}
	assert.Len(t, n.History(), defaultHistorySize)
}

func TestSignalMessageFormat(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	n := New(nil, sink)

	n.SendSignal(ctx, "ETH/USDT", domain.ActionBuy, 2000, "drop from recent high")

	require.Len(t, sink.notifications(), 1)
	got := sink.notifications()[0]
	assert.Equal(t, domain.NotifySignal, got.Type)
	assert.Contains(t, got.Message, "BUY")
	assert.Contains(t, got.Message, "drop from recent high")
}

func TestConsoleSinkWritesLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	err := sink.Send(context.Background(), domain.Notification{
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Type:      domain.NotifyTrade,
		Symbol:    "BTC/USDT",
		Message:   "BUY 0.01 BTC/USDT @ 50000",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[TRADE] BTC/USDT")
	assert.Contains(t, buf.String(), "2025-01-02 03:04:05")
}

func TestFileSinkAppendsPerSymbol(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, sink.Send(ctx, domain.Notification{
			Timestamp: time.Now().UTC(),
			Type:      domain.NotifyStatus,
			Symbol:    "BTC/USDT",
			Message:   "snapshot",
		}))
	}
	require.NoError(t, sink.Send(ctx, domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifyStatus,
		Symbol:    "ETH/USDT",
		Message:   "snapshot",
	}))

	f, err := os.Open(filepath.Join(dir, "BTC_USDT.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var n domain.Notification
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &n))
		assert.Equal(t, "BTC/USDT", n.Symbol)
		lines++
	}
	assert.Equal(t, 2, lines)

	_, err = os.Stat(filepath.Join(dir, "ETH_USDT.jsonl"))
	assert.NoError(t, err)
}

func TestWebhookSinkPostsJSON(t *testing.T) {
	var received domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, srv.Client())
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), domain.Notification{
		Timestamp: time.Now().UTC(),
		Type:      domain.NotifyError,
		Symbol:    "BTC/USDT",
		Message:   "boom",
	}))
	assert.Equal(t, domain.NotifyError, received.Type)
}

func TestWebhookSinkReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, srv.Client())
	require.NoError(t, err)

	err = sink.Send(context.Background(), domain.Notification{Type: domain.NotifyError, Symbol: "BTC/USDT"})
	assert.Error(t, err)
}
