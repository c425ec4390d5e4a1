package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

type botServer struct {
	mu       sync.Mutex
	messages []url.Values
	failSend bool
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"autotrade_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		b.mu.Lock()
		b.messages = append(b.messages, r.PostForm)
		fail := b.failSend
		b.mu.Unlock()
		if fail {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestTelegram(t *testing.T, b *botServer) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srv.Close)

	tg, err := newTelegram("token", 42, srv.URL+"/bot%s/%s", srv.Client(), nil)
	require.NoError(t, err)
	return tg
}

func TestTelegram_Notify(t *testing.T) {
	b := &botServer{}
	tg := newTestTelegram(t, b)

	tg.Notify("BUY BTC_KRW 30%")
	tg.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.messages, 1)
	assert.Equal(t, "42", b.messages[0].Get("chat_id"))
	assert.Equal(t, "BUY BTC_KRW 30%", b.messages[0].Get("text"))
}

func TestTelegram_NotifyFailureIsSwallowed(t *testing.T) {
	b := &botServer{failSend: true}
	tg := newTestTelegram(t, b)

	assert.NotPanics(t, func() {
		tg.Notify("hello")
		tg.Close()
	})
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	_, err := newTelegram("", 42, "http://127.0.0.1/bot%s/%s", http.DefaultClient, nil)
	assert.Error(t, err)
	_, err = newTelegram("token", 0, "http://127.0.0.1/bot%s/%s", http.DefaultClient, nil)
	assert.Error(t, err)
}

func TestFormatDecision(t *testing.T) {
	tests := []struct {
		name     string
		ev       domain.DecisionEvent
		contains []string
		excludes []string
	}{
		{
			name:     "executed buy",
			ev:       domain.DecisionEvent{Pair: "BTC_KRW", Action: "buy", Percentage: 30, Executed: true, Price: "100000000", Reason: "RSI oversold"},
			contains: []string{"BUY BTC_KRW 30% (executed)", "price: 100000000 KRW", "RSI oversold"},
		},
		{
			name:     "skipped sell",
			ev:       domain.DecisionEvent{Pair: "BTC_KRW", Action: "sell", Percentage: 10},
			contains: []string{"SELL BTC_KRW 10% (not executed)"},
		},
		{
			name:     "hold has no percentage",
			ev:       domain.DecisionEvent{Pair: "BTC_KRW", Action: "hold", TotalKRW: "1000000", KRWBalance: "1000000", BTCBalance: "0"},
			contains: []string{"HOLD BTC_KRW\n", "total: 1000000 KRW"},
			excludes: []string{"%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDecision(tt.ev)
			for _, c := range tt.contains {
				assert.Contains(t, got, c)
			}
			for _, e := range tt.excludes {
				assert.NotContains(t, got, e)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantRunes int
	}{
		{name: "short ascii", text: "hello", wantRunes: 5},
		{name: "ascii over limit", text: strings.Repeat("a", 5000), wantRunes: maxMessageLen},
		{name: "hangul under rune limit", text: strings.Repeat("가", 2000), wantRunes: 2000},
		{name: "hangul over limit", text: strings.Repeat("가", 5000), wantRunes: maxMessageLen},
		{name: "mixed width", text: strings.Repeat("a가", 3000), wantRunes: maxMessageLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.text)
			assert.True(t, utf8.ValidString(got))
			assert.Equal(t, tt.wantRunes, utf8.RuneCountInString(got))
			assert.True(t, strings.HasPrefix(tt.text, got))
		})
	}
}
