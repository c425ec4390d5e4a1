// Package macro fetches auxiliary index series (dollar index, treasury yields)
// from the Yahoo Finance chart API.
package macro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooClient chart API client.
type YahooClient struct {
	baseURL    string
	interval   string
	rng        string
	loc        *time.Location
	httpClient *http.Client
}

// NewYahooClient creates a client returning points in loc. Interval and rng use
// Yahoo notation, e.g. "1h" and "7d".
func NewYahooClient(baseURL, interval, rng string, loc *time.Location, timeout time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		interval:   interval,
		rng:        rng,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Series returns the close series of symbol. Points without a close are dropped.
func (c *YahooClient) Series(ctx context.Context, name, symbol string) (domain.MacroSeries, error) {
	q := url.Values{}
	q.Set("interval", c.interval)
	q.Set("range", c.rng)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.MacroSeries{}, errors.Wrap(err, "failed to create HTTP request")
	}
	// yahoo rejects requests without a browser-like agent
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MacroSeries{}, errors.Wrapf(err, "chart request for %s failed", symbol)
	}
	defer resp.Body.Close()

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.MacroSeries{}, errors.Wrapf(err, "failed to decode chart for %s (status %d)", symbol, resp.StatusCode)
	}
	if body.Chart.Error != nil {
		return domain.MacroSeries{}, fmt.Errorf("yahoo chart error for %s: %s: %s", symbol, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.MacroSeries{}, fmt.Errorf("yahoo chart returned status %d for %s", resp.StatusCode, symbol)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return domain.MacroSeries{}, fmt.Errorf("empty chart for %s", symbol)
	}

	result := body.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	series := domain.MacroSeries{Name: name, Symbol: symbol, Points: make([]domain.MacroPoint, 0, len(result.Timestamp))}
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series.Points = append(series.Points, domain.MacroPoint{
			Time:  time.Unix(ts, 0).In(c.loc),
			Close: *closes[i],
		})
	}
	return series, nil
}
