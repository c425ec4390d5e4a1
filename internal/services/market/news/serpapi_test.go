package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google_news", r.URL.Query().Get("engine"))
		assert.Equal(t, "bitcoin OR btc", r.URL.Query().Get("q"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"news_results":[
			{"title":"one","date":"01/01/2024"},
			{"stories":[]},
			{"title":"two","date":"01/02/2024"},
			{"title":"three","date":"01/03/2024"}
		]}`))
	}))
	defer srv.Close()

	items, err := NewSerpAPIFetcher(srv.URL, "key", time.Second).Fetch(context.Background(), "bitcoin OR btc", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "one", items[0].Title)
	assert.Equal(t, "two", items[1].Title)
	assert.Equal(t, "01/02/2024", items[1].Date)
}

func TestSerpAPIFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer srv.Close()

	_, err := NewSerpAPIFetcher(srv.URL, "bad", time.Second).Fetch(context.Background(), "q", 15)
	assert.ErrorContains(t, err, "Invalid API key")

	_, err = NewSerpAPIFetcher(srv.URL, "", time.Second).Fetch(context.Background(), "q", 15)
	assert.Error(t, err)
}
