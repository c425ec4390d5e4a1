package internal

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrade/internal/domain"
)

type transactionWriter interface {
	AppendTransaction(ctx context.Context, tx domain.TransactionRecord) (domain.TransactionRecord, error)
}

// ParseTransaction reads "<deposit|withdrawal> <amount> [reason...]" in KRW.
func ParseTransaction(args []string, now time.Time) (domain.TransactionRecord, error) {
	if len(args) < 2 {
		return domain.TransactionRecord{}, errors.New("usage: tx <deposit|withdrawal> <amount> [reason]")
	}

	typ := domain.TransactionType(strings.ToLower(args[0]))
	if typ != domain.TransactionDeposit && typ != domain.TransactionWithdrawal {
		return domain.TransactionRecord{}, errors.Errorf("unknown transaction type %q", args[0])
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", ""))
	if err != nil {
		return domain.TransactionRecord{}, errors.Wrapf(err, "invalid amount %q", args[1])
	}
	if !amount.IsPositive() {
		return domain.TransactionRecord{}, errors.Errorf("amount must be positive, got %s", amount)
	}

	return domain.TransactionRecord{
		Timestamp: now,
		Type:      typ,
		Amount:    amount,
		Currency:  "KRW",
		Reason:    strings.Join(args[2:], " "),
	}, nil
}

// RecordTransaction appends a deposit or withdrawal so performance excludes it.
func RecordTransaction(ctx context.Context, store transactionWriter, args []string, logger *zap.Logger) error {
	tx, err := ParseTransaction(args, time.Now())
	if err != nil {
		return err
	}
	saved, err := store.AppendTransaction(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "record transaction")
	}
	logger.Info("transaction recorded",
		zap.Uint("id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.String("amount", saved.Amount.String()),
		zap.String("reason", saved.Reason))
	return nil
}
