package macro

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahooSeriesDropsNullsAndConvertsZone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/DX-Y.NYB", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "7d", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1704067200,1704070800,1704074400],
			"indicators":{"quote":[{"close":[101.5,null,101.7]}]}
		}],"error":null}}`))
	}))
	defer srv.Close()

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	series, err := NewYahooClient(srv.URL, "1h", "7d", loc, time.Second).Series(context.Background(), "DXY", "DX-Y.NYB")
	require.NoError(t, err)
	assert.Equal(t, "DXY", series.Name)
	require.Len(t, series.Points, 2)
	assert.InDelta(t, 101.5, series.Points[0].Close, 1e-9)
	assert.InDelta(t, 101.7, series.Points[1].Close, 1e-9)
	assert.Equal(t, 9, series.Points[0].Time.Hour())
	assert.Equal(t, loc, series.Points[0].Time.Location())
}

func TestYahooSeriesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "chart error", status: http.StatusNotFound, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{name: "empty result", status: http.StatusOK, body: `{"chart":{"result":[],"error":null}}`},
		{name: "not json", status: http.StatusTooManyRequests, body: `Too Many Requests`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewYahooClient(srv.URL, "1h", "7d", nil, time.Second).Series(context.Background(), "US10Y", "^TNX")
			assert.Error(t, err)
		})
	}
}
