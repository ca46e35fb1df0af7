package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantmom/internal/backtest"
	"quantmom/internal/config"
	"quantmom/internal/params"
	"quantmom/internal/portfolio"
	"quantmom/internal/store"
	"quantmom/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/quantmom.yaml", "configuration file")
	noExport := flag.Bool("no-export", false, "skip writing the equity curve to the Parquet archive")
	flag.Parse()

	if p := os.Getenv("QUANTMOM_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	bt := &cfg.Backtest
	if err := bt.Validate(); err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()

	gapPolicy, err := backtest.ParseGapPolicy(bt.PriceGapPolicy)
	if err != nil {
		log.Fatalf("invalid price gap policy: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Everything the simulation needs is loaded upfront; the date loop
	// itself never touches the store.
	loadStart := time.Now()
	calendar, err := db.TradingCalendar(ctx, bt.ReferenceSymbol, bt.StartDate, bt.EndDate)
	if err != nil {
		log.Fatalf("loading trading calendar: %v", err)
	}
	prices, err := store.LoadPriceBook(ctx, db, bt.Universe, bt.StartDate, bt.EndDate)
	if err != nil {
		log.Fatalf("loading price book: %v", err)
	}
	table, err := params.LoadTable(ctx, db, bt.Universe, bt.StartDate, bt.EndDate)
	if err != nil {
		log.Fatalf("loading parameter table: %v", err)
	}
	quotes, err := db.ReadRates(ctx, bt.StartDate, bt.EndDate)
	if err != nil {
		log.Fatalf("loading risk-free rates: %v", err)
	}

	logger.Info("inputs loaded",
		"tradingDays", len(calendar),
		"instruments", len(bt.Universe),
		"riskFreeQuotes", len(quotes),
		"elapsed", time.Since(loadStart).Round(time.Millisecond),
	)

	constructor := portfolio.NewConstructor(table, prices, calendar,
		bt.Universe, bt.FirmsHeld, bt.SlippageFactor)
	engine := backtest.NewEngine(constructor, prices, calendar, backtest.Options{
		StartDate:       bt.StartDate,
		EndDate:         bt.EndDate,
		StartingCapital: bt.StartingCapital,
		RebalanceMonths: bt.RebalancePeriodMonths,
		GapPolicy:       gapPolicy,
	})

	runStart := time.Now()
	curve, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	logger.Info("simulation finished",
		"points", len(curve),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)

	metrics, serr := backtest.Summarize(curve, bt.StartingCapital, quotes)
	if serr != nil {
		logger.Warn("some metrics unavailable", "err", serr)
	}

	label := fmt.Sprintf("lb%d_cw%d_rp%d_fh%d",
		bt.LookbackMonths, bt.ConsistencyWindowMonths, bt.RebalancePeriodMonths, bt.FirmsHeld)

	fmt.Printf("\n%s  %v..%v  capital %.2f\n\n", label, bt.StartDate, bt.EndDate, bt.StartingCapital)
	for _, name := range backtest.MetricNames {
		if v, ok := metrics[name]; ok {
			fmt.Printf("  %-20s %12.6f\n", name, v)
		} else {
			fmt.Printf("  %-20s %12s\n", name, "n/a")
		}
	}
	fmt.Println()

	if !*noExport {
		pstore := store.NewParquetStore(cfg.Storage.DataDir)
		if err := pstore.WriteEquityCurve(label, curve); err != nil {
			log.Fatalf("exporting equity curve: %v", err)
		}
		logger.Info("equity curve exported", "label", label)
	}
}
