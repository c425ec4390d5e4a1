// Package web serves the dashboard: trade history, performance and a live stream of
// decision events.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/events"
	"github.com/vadiminshakov/autotrade/internal/services/oracle"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	decisionPollInterval = 2 * time.Second
	defaultDays          = 7
)

type tradeReader interface {
	AllTrades(ctx context.Context) ([]domain.TradeRecord, error)
	RecentTrades(ctx context.Context, days int) ([]domain.TradeRecord, error)
	TransactionsSince(ctx context.Context, since time.Time) ([]domain.TransactionRecord, error)
}

type decisionReader interface {
	EventsAfter(index uint64) ([]domain.DecisionEventRecord, error)
}

// Server exposes the HTML UI, JSON endpoints and an SSE stream.
type Server struct {
	Addr      string
	Trades    tradeReader
	Decisions decisionReader
	// Updates optional; wakes streams as soon as an event is journaled.
	Updates *events.Broadcaster[domain.DecisionEvent]
	logger  *zap.Logger
}

// NewServer creates a new web server instance. decisions may be nil.
func NewServer(addr string, trades tradeReader, decisions decisionReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Trades: trades, Decisions: decisions, logger: logger}
}

// Handler returns the routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/performance", s.handlePerformance)
	mux.HandleFunc("/decisions/stream", s.handleDecisionStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening with automatic TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// tradeView trade row with its total valuation.
type tradeView struct {
	domain.TradeRecord
	TotalAssets decimal.Decimal `json:"total_assets"`
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.Trades.AllTrades(r.Context())
	if err != nil {
		s.logger.Error("load trades", zap.Error(err))
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		return
	}

	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, tradeView{TradeRecord: t, TotalAssets: t.Valuation().Round(0)})
	}
	writeJSON(w, views)
}

type performanceView struct {
	Days           int     `json:"days"`
	Trades         int     `json:"trades"`
	PerformancePct float64 `json:"performance_pct"`
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	days := defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	trades, err := s.Trades.RecentTrades(r.Context(), days)
	if err != nil {
		s.logger.Error("load recent trades", zap.Error(err))
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		return
	}
	txs, err := s.Trades.TransactionsSince(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.logger.Error("load transactions", zap.Error(err))
		http.Error(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, performanceView{
		Days:           days,
		Trades:         len(trades),
		PerformancePct: oracle.Performance(trades, txs),
	})
}

func (s *Server) handleDecisionStream(w http.ResponseWriter, r *http.Request) {
	if s.Decisions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "decision store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := uint64(0)
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if idx, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastIndex = idx
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat keeps proxies from closing the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(decisionPollInterval)
	defer pollTicker.Stop()

	var wake chan domain.DecisionEvent
	if s.Updates != nil {
		wake = s.Updates.Subscribe()
		defer s.Updates.Unsubscribe(wake)
	}

	sendEvents := func() error {
		records, err := s.Decisions.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: decision\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = record.Index
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvents(); err != nil {
		s.logger.Error("decision stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.logger.Warn("decision stream poll", zap.Error(err))
			}
		case <-wake:
			if err := sendEvents(); err != nil {
				s.logger.Warn("decision stream push", zap.Error(err))
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
