// Package news provides bitcoin headlines cached per half-day period.
package news

import (
	"context"
	"sync"
	"time"

	"github.com/vadiminshakov/autotrade/internal/domain"
	"go.uber.org/zap"
)

// Fetcher searches headlines.
type Fetcher interface {
	Fetch(ctx context.Context, query string, limit int) ([]domain.NewsHeadline, error)
}

// Cache optional shared store for headlines keyed by period.
type Cache interface {
	// Get reports false on a miss.
	Get(ctx context.Context, period string) ([]domain.NewsHeadline, bool, error)
	Set(ctx context.Context, period string, items []domain.NewsHeadline) error
}

// PeriodKey returns the half-day period of t in loc: "YYYY-MM-DD-am" before noon,
// "YYYY-MM-DD-pm" from noon.
func PeriodKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	half := "am"
	if t.Hour() >= 12 {
		half = "pm"
	}
	return t.Format("2006-01-02") + "-" + half
}

// Service fetches headlines at most once per period.
// A failed fetch returns whatever was cached last.
type Service struct {
	fetcher Fetcher
	cache   Cache
	query   string
	limit   int
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger

	mu     sync.Mutex
	period string
	items  []domain.NewsHeadline
}

// Option configures Service.
type Option func(*Service)

// WithCache adds a shared cache consulted before the fetcher.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(fetcher Fetcher, query string, limit int, loc *time.Location, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		fetcher: fetcher,
		query:   query,
		limit:   limit,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Headlines returns the headlines of the current period.
func (s *Service) Headlines(ctx context.Context) []domain.NewsHeadline {
	s.mu.Lock()
	defer s.mu.Unlock()

	period := PeriodKey(s.now(), s.loc)
	if period == s.period {
		return s.items
	}

	if s.cache != nil {
		items, ok, err := s.cache.Get(ctx, period)
		if err != nil {
			s.logger.Warn("news cache read failed", zap.String("period", period), zap.Error(err))
		} else if ok {
			s.period, s.items = period, items
			return items
		}
	}

	items, err := s.fetcher.Fetch(ctx, s.query, s.limit)
	if err != nil {
		s.logger.Warn("news fetch failed, using last cached headlines",
			zap.String("period", period),
			zap.Int("cached", len(s.items)),
			zap.Error(err))
		return s.items
	}

	s.period, s.items = period, items
	s.logger.Info("news refreshed", zap.String("period", period), zap.Int("count", len(items)))

	if s.cache != nil {
		if err := s.cache.Set(ctx, period, items); err != nil {
			s.logger.Warn("news cache write failed", zap.String("period", period), zap.Error(err))
		}
	}
	return items
}
