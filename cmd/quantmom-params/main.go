package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantmom/internal/config"
	"quantmom/internal/params"
	"quantmom/internal/store"
	"quantmom/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/quantmom.yaml", "configuration file")
	flag.Parse()

	if p := os.Getenv("QUANTMOM_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Backtest.Validate(); err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	computer := params.NewComputer(cfg.Backtest.LookbackMonths, cfg.Backtest.ConsistencyWindowMonths)
	runner := params.NewBatchRunner(db, db, computer, cfg.Backtest.MaxWorkers)

	// The whole stored history feeds the computation so the warmup before
	// the simulated range is covered.
	start := time.Now()
	completed, err := runner.Run(ctx, cfg.Backtest.Universe, 0, 99991231)
	if err != nil {
		log.Fatalf("parameter precompute: %v", err)
	}

	logger.Info("parameter precompute finished",
		"instruments", completed,
		"lookbackMonths", cfg.Backtest.LookbackMonths,
		"consistencyWindowMonths", cfg.Backtest.ConsistencyWindowMonths,
		"elapsed", time.Since(start).Round(time.Second),
	)
}
