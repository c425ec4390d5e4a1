// Command autotrade runs the BTC/KRW trading bot: at fixed times of day it asks an
// LLM for a buy/sell/hold decision, places the market order on Upbit and records
// the result in a local sqlite ledger.
//
// Usage:
//
//	autotrade --config config.yaml --env .env
//	autotrade --setup                         (interactive wizard, then start)
//	autotrade tx deposit 500000 "monthly top-up"
//
// Required environment variables:
//
//	OPENAI_API_KEY
//	UPBIT_ACCESS_KEY, UPBIT_SECRET_KEY (unless dry_run)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrade/config"
	"github.com/vadiminshakov/autotrade/internal"
	"github.com/vadiminshakov/autotrade/internal/logger"
	"github.com/vadiminshakov/autotrade/internal/setup"
	"github.com/vadiminshakov/autotrade/internal/storage/ledger"
)

func main() {
	flags := config.ParseFlags()

	if flags.Setup {
		if err := setup.RunTUI(flags.ConfigPath, flags.EnvPath); err != nil {
			log.Fatalf("setup failed: %v", err)
		}
	}

	conf, err := config.Get(flags)
	if err != nil {
		log.Fatalf("failed to get configuration: %v", err)
	}

	l, err := logger.New(conf.Log.Level, conf.Log.File)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(flags.Args) > 0 && flags.Args[0] == "tx" {
		if err := recordTransaction(ctx, conf, flags.Args[1:], l); err != nil {
			l.Fatal("failed to record transaction", zap.Error(err))
		}
		return
	}

	bot, err := internal.NewTradingBot(ctx, conf, l)
	if err != nil {
		l.Fatal("failed to create trading bot", zap.Error(err))
	}
	defer bot.Close()

	if err := bot.Run(ctx); err != nil {
		l.Error("trading bot stopped with error", zap.Error(err))
		return
	}
	l.Info("shutdown complete")
}

func recordTransaction(ctx context.Context, conf config.Config, args []string, l *zap.Logger) error {
	store, err := ledger.Open(conf.Ledger.Path, l)
	if err != nil {
		return err
	}
	defer store.Close()
	return internal.RecordTransaction(ctx, store, args, l)
}
