package clients

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/pkg/retrier"
)

const (
	upbitMaxCandles = 200
	upbitTimeLayout = "2006-01-02T15:04:05"
)

// UpbitClient REST client for the Upbit exchange. Market data endpoints are public;
// account and order endpoints are signed with a JWT built from the access/secret pair.
type UpbitClient struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	retry      *retrier.Retrier
}

// UpbitOption configures the client.
type UpbitOption func(*UpbitClient)

// WithRetrier replaces the retry policy used for GET requests.
func WithRetrier(r *retrier.Retrier) UpbitOption {
	return func(c *UpbitClient) { c.retry = r }
}

// NewUpbitClient creates a client. Empty keys restrict it to public endpoints.
func NewUpbitClient(baseURL, accessKey, secretKey string, timeout time.Duration, opts ...UpbitOption) *UpbitClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &UpbitClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(500*time.Millisecond)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type upbitCandle struct {
	CandleDateTimeUTC string          `json:"candle_date_time_utc"`
	OpeningPrice      decimal.Decimal `json:"opening_price"`
	HighPrice         decimal.Decimal `json:"high_price"`
	LowPrice          decimal.Decimal `json:"low_price"`
	TradePrice        decimal.Decimal `json:"trade_price"`
	AccTradeVolume    decimal.Decimal `json:"candle_acc_trade_volume"`
}

type upbitOrderBook struct {
	Market       string          `json:"market"`
	Timestamp    int64           `json:"timestamp"`
	TotalAskSize decimal.Decimal `json:"total_ask_size"`
	TotalBidSize decimal.Decimal `json:"total_bid_size"`
	Units        []struct {
		AskPrice decimal.Decimal `json:"ask_price"`
		BidPrice decimal.Decimal `json:"bid_price"`
		AskSize  decimal.Decimal `json:"ask_size"`
		BidSize  decimal.Decimal `json:"bid_size"`
	} `json:"orderbook_units"`
}

type upbitTicker struct {
	Market     string          `json:"market"`
	TradePrice decimal.Decimal `json:"trade_price"`
}

type upbitAccount struct {
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Locked      decimal.Decimal `json:"locked"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
}

type upbitOrder struct {
	UUID      string          `json:"uuid"`
	Side      string          `json:"side"`
	Market    string          `json:"market"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	State     string          `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

type upbitError struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// Candles returns the last count candles in ascending time order.
func (c *UpbitClient) Candles(ctx context.Context, market string, interval domain.Interval, count int) ([]domain.Candle, error) {
	var path string
	switch interval {
	case domain.IntervalDay:
		path = "/v1/candles/days"
	case domain.IntervalHour:
		path = "/v1/candles/minutes/60"
	default:
		return nil, fmt.Errorf("unsupported candle interval: %s", interval)
	}
	if count <= 0 || count > upbitMaxCandles {
		return nil, fmt.Errorf("candle count must be 1-%d, got %d", upbitMaxCandles, count)
	}

	q := url.Values{}
	q.Set("market", market)
	q.Set("count", strconv.Itoa(count))

	var raw []upbitCandle
	if err := c.do(ctx, http.MethodGet, path, q, nil, false, &raw); err != nil {
		return nil, errors.Wrapf(err, "fetch %s candles", interval)
	}

	// upbit returns newest first
	candles := make([]domain.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		k := raw[i]
		ts, err := time.ParseInLocation(upbitTimeLayout, k.CandleDateTimeUTC, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "parse candle time %q", k.CandleDateTimeUTC)
		}
		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   k.OpeningPrice,
			High:   k.HighPrice,
			Low:    k.LowPrice,
			Close:  k.TradePrice,
			Volume: k.AccTradeVolume,
		})
	}
	return candles, nil
}

// OrderBook returns the live order book of market.
func (c *UpbitClient) OrderBook(ctx context.Context, market string) (domain.OrderBookSnapshot, error) {
	q := url.Values{}
	q.Set("markets", market)

	var raw []upbitOrderBook
	if err := c.do(ctx, http.MethodGet, "/v1/orderbook", q, nil, false, &raw); err != nil {
		return domain.OrderBookSnapshot{}, errors.Wrap(err, "fetch orderbook")
	}
	if len(raw) == 0 {
		return domain.OrderBookSnapshot{}, fmt.Errorf("empty orderbook response for %s", market)
	}

	ob := raw[0]
	snapshot := domain.OrderBookSnapshot{
		CapturedAt:   time.UnixMilli(ob.Timestamp),
		TotalAskSize: ob.TotalAskSize,
		TotalBidSize: ob.TotalBidSize,
		Bids:         make([]domain.OrderBookLevel, 0, len(ob.Units)),
		Asks:         make([]domain.OrderBookLevel, 0, len(ob.Units)),
	}
	for _, u := range ob.Units {
		snapshot.Bids = append(snapshot.Bids, domain.OrderBookLevel{Price: u.BidPrice, Size: u.BidSize})
		snapshot.Asks = append(snapshot.Asks, domain.OrderBookLevel{Price: u.AskPrice, Size: u.AskSize})
	}
	return snapshot, nil
}

// Price returns the last trade price of market.
func (c *UpbitClient) Price(ctx context.Context, market string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("markets", market)

	var raw []upbitTicker
	if err := c.do(ctx, http.MethodGet, "/v1/ticker", q, nil, false, &raw); err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch ticker")
	}
	if len(raw) == 0 {
		return decimal.Zero, fmt.Errorf("empty ticker response for %s", market)
	}
	return raw[0].TradePrice, nil
}

// Balances returns all account holdings.
func (c *UpbitClient) Balances(ctx context.Context) (domain.Balances, error) {
	var raw []upbitAccount
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, nil, true, &raw); err != nil {
		return nil, errors.Wrap(err, "fetch accounts")
	}

	balances := make(domain.Balances, 0, len(raw))
	for _, a := range raw {
		balances = append(balances, domain.Balance{
			Currency:    a.Currency,
			Balance:     a.Balance,
			Locked:      a.Locked,
			AvgBuyPrice: a.AvgBuyPrice,
		})
	}
	return balances, nil
}

// BuyMarket spends the given quote amount at market price.
func (c *UpbitClient) BuyMarket(ctx context.Context, market string, spend decimal.Decimal) (domain.Order, error) {
	return c.placeOrder(ctx, map[string]string{
		"market":   market,
		"side":     string(domain.SideBuy),
		"ord_type": "price",
		"price":    spend.Truncate(0).String(),
	})
}

// SellMarket sells the given base volume at market price.
func (c *UpbitClient) SellMarket(ctx context.Context, market string, volume decimal.Decimal) (domain.Order, error) {
	return c.placeOrder(ctx, map[string]string{
		"market":   market,
		"side":     string(domain.SideSell),
		"ord_type": "market",
		"volume":   volume.Truncate(8).String(),
	})
}

func (c *UpbitClient) placeOrder(ctx context.Context, params map[string]string) (domain.Order, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}

	var raw upbitOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", q, params, true, &raw); err != nil {
		return domain.Order{}, errors.Wrapf(err, "place %s order", params["side"])
	}
	return domain.Order{
		UUID:      raw.UUID,
		Side:      domain.Side(raw.Side),
		Market:    raw.Market,
		Price:     raw.Price,
		Volume:    raw.Volume,
		State:     raw.State,
		CreatedAt: raw.CreatedAt,
	}, nil
}

// token builds the bearer JWT. The query hash covers the url-encoded parameters.
func (c *UpbitClient) token(query string) (string, error) {
	if c.accessKey == "" || c.secretKey == "" {
		return "", errUpbitNoCredentials
	}

	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if query != "" {
		sum := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
	if err != nil {
		return "", errors.Wrap(err, "sign upbit token")
	}
	return signed, nil
}

var errUpbitNoCredentials = errors.New("upbit credentials are not configured")

// upbitStatusError non-2xx response.
type upbitStatusError struct {
	code int
	msg  string
}

func (e *upbitStatusError) Error() string { return e.msg }

// do sends the request. GETs are retried on transport errors, 429 and 5xx;
// orders are sent exactly once.
func (c *UpbitClient) do(ctx context.Context, method, path string, query url.Values, body map[string]string, private bool, out any) error {
	if method != http.MethodGet {
		return c.doOnce(ctx, method, path, query, body, private, out)
	}
	return c.retry.Do(ctx, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, query, body, private, out)
		var se *upbitStatusError
		if errors.As(err, &se) && se.code != http.StatusTooManyRequests && se.code < 500 {
			return retrier.Permanent(err)
		}
		if errors.Is(err, errUpbitNoCredentials) {
			return retrier.Permanent(err)
		}
		return err
	})
}

func (c *UpbitClient) doOnce(ctx context.Context, method, path string, query url.Values, body map[string]string, private bool, out any) error {
	endpoint := c.baseURL + path
	encoded := query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = strings.NewReader(string(payload))
	} else if encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if private {
		tok, err := c.token(encoded)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr upbitError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Name != "" {
			return &upbitStatusError{code: resp.StatusCode, msg: fmt.Sprintf("upbit API error %d: %s: %s", resp.StatusCode, apiErr.Error.Name, apiErr.Error.Message)}
		}
		return &upbitStatusError{code: resp.StatusCode, msg: fmt.Sprintf("upbit API returned status %d: %s", resp.StatusCode, string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}
