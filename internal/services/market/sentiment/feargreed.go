// Package sentiment fetches the crypto fear & greed index.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

const DefaultFearGreedURL = "https://api.alternative.me/fng/"

// FearGreedClient alternative.me index client.
type FearGreedClient struct {
	url        string
	httpClient *http.Client
}

func NewFearGreedClient(url string, timeout time.Duration) *FearGreedClient {
	if url == "" {
		url = DefaultFearGreedURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FearGreedClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type fearGreedResponse struct {
	Name     string             `json:"name"`
	Data     []domain.FearGreed `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

// Current returns the latest index value.
func (c *FearGreedClient) Current(ctx context.Context) (*domain.FearGreed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fear and greed request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear and greed API returned status %d", resp.StatusCode)
	}

	var body fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode fear and greed response")
	}
	if body.Metadata.Error != nil && *body.Metadata.Error != "" {
		return nil, fmt.Errorf("fear and greed API error: %s", *body.Metadata.Error)
	}
	if len(body.Data) == 0 {
		return nil, errors.New("fear and greed response has no data")
	}

	fg := body.Data[0]
	return &fg, nil
}
