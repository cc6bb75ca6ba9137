package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"multiTraderBot/internal/domain"
	"multiTraderBot/internal/ports"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	defaultPriceCacheTTL = 5 * time.Second
)

// Client implements ports.PriceSource and ports.OrderClient against the
// Binance spot API. Ticker prices are cached per symbol for a short window
// so many engines polling at once do not hammer the price endpoint.
type Client struct {
	spot   *binance.Client
	logger ports.Logger

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cache    map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey        string
	SecretKey     string
	UseTestnet    bool
	Logger        ports.Logger
	PriceCacheTTL time.Duration // defaults to 5s
}

// New creates a new Binance spot client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	ttl := cfg.PriceCacheTTL
	if ttl <= 0 {
		ttl = defaultPriceCacheTTL
	}

	return &Client{
		spot:     client,
		logger:   cfg.Logger,
		cacheTTL: ttl,
		cache:    make(map[string]cachedPrice),
	}, nil
}

// marketSymbol converts an asset symbol like "BTC/USDT" into the exchange
// market name "BTCUSDT".
func marketSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1121, -1130:
			// Parameter and request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2014, -2015: // API-key invalid or lacking permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -3005: // Insufficient balance
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "use of closed network connection") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetPrice retrieves the last ticker price for a single symbol, serving from
// the cache when the entry is still fresh.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetPrice"

	c.cacheMu.Lock()
	if entry, ok := c.cache[symbol]; ok && time.Since(entry.fetchedAt) < c.cacheTTL {
		c.cacheMu.Unlock()
		return entry.price, nil
	}
	c.cacheMu.Unlock()

	tickers, err := c.spot.NewListPricesService().Symbol(marketSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("%s: %w: no ticker data for %s", op, ports.ErrPriceUnavailable, symbol)
	}

	price, err := strconv.ParseFloat(tickers[0].Price, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].Price, err)
		return 0, c.handleError(ctx, parseErr, op)
	}

	c.storePrice(symbol, price)
	return price, nil
}

// GetPrices retrieves prices for several symbols in one batched request.
// Symbols missing from the exchange response are absent from the result.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	op := "GetPrices"
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	markets := make([]string, 0, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for _, s := range symbols {
		m := marketSymbol(s)
		markets = append(markets, m)
		bySymbol[m] = s
	}

	tickers, err := c.spot.NewListPricesService().Symbols(markets).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		symbol, ok := bySymbol[t.Symbol]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparsable ticker price", map[string]interface{}{
				"symbol": symbol,
				"price":  t.Price,
			})
			continue
		}
		out[symbol] = price
		c.storePrice(symbol, price)
	}
	return out, nil
}

func (c *Client) storePrice(symbol string, price float64) {
	c.cacheMu.Lock()
	c.cache[symbol] = cachedPrice{price: price, fetchedAt: time.Now()}
	c.cacheMu.Unlock()
}

// SubmitOrder places a market order. Buys are sized by notional value in the
// quote currency (quantity x price); sells by base quantity.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.Order, error) {
	op := "SubmitOrder"

	svc := c.spot.NewCreateOrderService().
		Symbol(marketSymbol(symbol)).
		Type(binance.OrderTypeMarket)

	switch side {
	case domain.Buy:
		svc = svc.Side(binance.SideTypeBuy).
			QuoteOrderQty(formatAmount(quantity * price))
	case domain.Sell:
		svc = svc.Side(binance.SideTypeSell).
			Quantity(formatAmount(quantity))
	default:
		return nil, fmt.Errorf("%s: %w: unsupported side %q", op, ports.ErrInvalidRequest, side)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	order := translateOrder(res, symbol, side, quantity, price)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   symbol,
		"side":     side,
		"quantity": order.Quantity,
		"price":    order.Price,
		"orderID":  order.ExchangeOrderID,
	})
	return order, nil
}

// CancelAll cancels every open order for the symbol. An exchange response
// saying there is nothing to cancel is not an error.
func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	op := "CancelAll"
	_, err := c.spot.NewCancelOpenOrdersService().Symbol(marketSymbol(symbol)).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == -2011 {
			// Nothing was open.
			c.logger.Debug(ctx, op+": no open orders", map[string]interface{}{"symbol": symbol})
			return nil
		}
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol})
	return nil
}

// translateOrder converts the exchange response into a domain order. Market
// buys report their fills; the average fill price is preferred over the
// ticker price used to size the order.
func translateOrder(res *binance.CreateOrderResponse, symbol string, side domain.Side, quantity, price float64) *domain.Order {
	executedQty, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	if executedQty > 0 {
		quantity = executedQty
	}

	if quoteQty, err := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64); err == nil && quoteQty > 0 && executedQty > 0 {
		price = quoteQty / executedQty
	}

	status := domain.OrderStatus(strings.ToLower(string(res.Status)))
	ts := time.UnixMilli(res.TransactTime).UTC()
	if res.TransactTime == 0 {
		ts = time.Now().UTC()
	}

	return &domain.Order{
		ID:              res.ClientOrderID,
		Symbol:          symbol,
		Side:            side,
		Quantity:        quantity,
		Price:           price,
		Status:          status,
		Timestamp:       ts,
		ExchangeOrderID: strconv.FormatInt(res.OrderID, 10),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
