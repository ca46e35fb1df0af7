package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quantmom/internal/config"
	"quantmom/internal/gather"
	"quantmom/internal/gather/us"
	"quantmom/internal/store"
)

func main() {
	cfgPath := flag.String("config", "config/quantmom.yaml", "configuration file")
	ratesOnly := flag.Bool("rates-only", false, "only ingest the risk-free CSV, skip bar gathering")
	flag.Parse()

	if p := os.Getenv("QUANTMOM_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/quantmom-data-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	sstore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer sstore.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var gatherers []gather.Gatherer
	if !*ratesOnly {
		gatherers = append(gatherers, us.NewDailyBarGatherer(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL,
			cfg.Alpaca.BaseURL,
			[]store.BarStore{pstore, sstore},
			cfg.Backtest.Universe,
			cfg.Gather.BatchSize,
			cfg.Gather.MaxWorkers,
			cfg.Gather.RateLimitPerMin,
			cfg.Gather.StartDate,
			filepath.Join(cfg.Storage.DataDir, "us", "daily"),
		))
	}
	if cfg.Gather.RiskFreeCSV != "" {
		gatherers = append(gatherers, gather.NewRateGatherer(cfg.Gather.RiskFreeCSV, sstore))
	}
	if len(gatherers) == 0 {
		log.Fatal("nothing to gather: no risk-free CSV configured and -rates-only set")
	}

	slog.Info("starting quantmom-data", "logFile", logFileName)
	for _, g := range gatherers {
		if err := g.Run(ctx); err != nil {
			log.Fatalf("%s: %v", g.Name(), err)
		}
	}
	slog.Info("all gatherers finished")
}
