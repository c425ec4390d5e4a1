// Package ledger keeps the append-only sqlite history of the bot: one row per
// decision cycle, manual deposits and withdrawals, and order-book snapshots.
package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store sqlite-backed ledger. It exposes no update or delete operations.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens (or creates) the sqlite file at path and migrates the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get ledger connection pool")
	}
	// single writer; sqlite serializes on the connection
	sqlDB.SetMaxOpenConns(1)

	return New(db, log)
}

// New wraps an existing gorm handle and creates missing tables.
func New(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&TradeModel{}, &TransactionModel{}, &SnapshotModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate ledger schema")
	}
	return &Store{db: db, now: time.Now, logger: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get ledger connection pool")
	}
	return sqlDB.Close()
}

// AppendTrade inserts one trade row and returns it with its ID.
func (s *Store) AppendTrade(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	m := toTradeModel(rec)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TradeRecord{}, errors.Wrap(err, "insert trade")
	}
	rec.ID = m.ID

	s.logger.Debug("trade recorded",
		zap.Uint("id", m.ID),
		zap.String("decision", m.Decision),
		zap.Int("percentage", m.Percentage))
	return rec, nil
}

// RecentTrades returns trades of the last days, newest first.
func (s *Store) RecentTrades(ctx context.Context, days int) ([]domain.TradeRecord, error) {
	since := s.now().AddDate(0, 0, -days).UTC()

	var rows []TradeModel
	err := s.db.WithContext(ctx).
		Where("timestamp > ?", since).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select recent trades")
	}

	out := make([]domain.TradeRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toRecord())
	}
	return out, nil
}

// AllTrades returns every trade, oldest first.
func (s *Store) AllTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	var rows []TradeModel
	if err := s.db.WithContext(ctx).Order("timestamp ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "select trades")
	}

	out := make([]domain.TradeRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toRecord())
	}
	return out, nil
}

// AppendTransaction records a manual deposit or withdrawal.
func (s *Store) AppendTransaction(ctx context.Context, tx domain.TransactionRecord) (domain.TransactionRecord, error) {
	switch tx.Type {
	case domain.TransactionDeposit, domain.TransactionWithdrawal:
	default:
		return domain.TransactionRecord{}, errors.Errorf("unknown transaction type %q", tx.Type)
	}
	if !tx.Amount.IsPositive() {
		return domain.TransactionRecord{}, errors.Errorf("transaction amount must be positive, got %s", tx.Amount)
	}

	m := toTransactionModel(tx)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TransactionRecord{}, errors.Wrap(err, "insert transaction")
	}
	tx.ID = m.ID
	return tx, nil
}

// TransactionsSince returns deposits and withdrawals after since, oldest first.
func (s *Store) TransactionsSince(ctx context.Context, since time.Time) ([]domain.TransactionRecord, error) {
	var rows []TransactionModel
	err := s.db.WithContext(ctx).
		Where("timestamp > ?", since.UTC()).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select transactions")
	}

	out := make([]domain.TransactionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toRecord())
	}
	return out, nil
}

// AppendSnapshot persists an order-book snapshot.
func (s *Store) AppendSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = s.now()
	}
	m, err := toSnapshotModel(snap)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return errors.Wrap(err, "insert orderbook snapshot")
	}
	return nil
}

// SnapshotsSince returns snapshots captured after since, oldest first.
func (s *Store) SnapshotsSince(ctx context.Context, since time.Time) ([]domain.OrderBookSnapshot, error) {
	var rows []SnapshotModel
	err := s.db.WithContext(ctx).
		Where("snapshot_time >= ?", since.UTC()).
		Order("snapshot_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select orderbook snapshots")
	}

	out := make([]domain.OrderBookSnapshot, 0, len(rows))
	for _, m := range rows {
		snap, err := m.toSnapshot()
		if err != nil {
			s.logger.Warn("skipping corrupt orderbook snapshot", zap.Uint("id", m.ID), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
