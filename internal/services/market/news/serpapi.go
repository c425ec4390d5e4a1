package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

const DefaultSerpAPIURL = "https://serpapi.com/search.json"

// SerpAPIFetcher google_news search over SerpAPI.
type SerpAPIFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSerpAPIFetcher(baseURL, apiKey string, timeout time.Duration) *SerpAPIFetcher {
	if baseURL == "" {
		baseURL = DefaultSerpAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SerpAPIFetcher{baseURL: baseURL, apiKey: apiKey, httpClient: &http.Client{Timeout: timeout}}
}

type serpResponse struct {
	Error       string `json:"error"`
	NewsResults []struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"news_results"`
}

// Fetch returns up to limit headlines for query.
func (f *SerpAPIFetcher) Fetch(ctx context.Context, query string, limit int) ([]domain.NewsHeadline, error) {
	if f.apiKey == "" {
		return nil, errors.New("SerpAPI key is empty")
	}

	q := url.Values{}
	q.Set("engine", "google_news")
	q.Set("q", query)
	q.Set("api_key", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "news request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SerpAPI returned status %d", resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode news response")
	}
	if body.Error != "" {
		return nil, fmt.Errorf("SerpAPI error: %s", body.Error)
	}

	items := make([]domain.NewsHeadline, 0, limit)
	for _, r := range body.NewsResults {
		if limit > 0 && len(items) == limit {
			break
		}
		if r.Title == "" {
			continue
		}
		items = append(items, domain.NewsHeadline{Title: r.Title, Date: r.Date})
	}
	return items, nil
}
