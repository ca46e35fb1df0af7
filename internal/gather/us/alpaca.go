// Package us gathers US equity market data from the Alpaca APIs.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantmom/internal/domain"
	"quantmom/internal/gather"
	"quantmom/internal/store"
	"quantmom/internal/util"
)

var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer fetches daily OHLCV bars for a configured instrument
// universe from the Alpaca market-data API and fans them out to one or more
// bar stores.
type DailyBarGatherer struct {
	client     *marketdata.Client
	sinks      []store.BarStore
	universe   []string
	batchSize  int // symbols per API call
	maxWorkers int // concurrent fetch goroutines
	startDate  string
	dailyDir   string // progress marker directory
	limiter    *util.RateLimiter
	apiKey     string
	apiSecret  string
	baseURL    string // trading API, for the calendar endpoint
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer for the given universe,
// writing every fetched bar to all of the provided sinks.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL, baseURL string, sinks []store.BarStore, universe []string, batchSize, maxWorkers, rateLimitPerMin int, startDate, dailyDir string) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &DailyBarGatherer{
		client:     marketdata.NewClient(opts),
		sinks:      sinks,
		universe:   universe,
		batchSize:  max(batchSize, 1),
		maxWorkers: max(maxWorkers, 1),
		startDate:  startDate,
		dailyDir:   dailyDir,
		limiter:    util.NewRateLimiter(max(rateLimitPerMin, 1)),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		log:        slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches bars for the whole universe from startDate through the latest
// finished trading day and writes them to every sink. A pass that already
// completed for that end date is a no-op.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}

	endDate, err := LatestFinishedTradingDay(g.apiKey, g.apiSecret, g.baseURL)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endStr := endDate.String()

	tracker, err := newProgressTracker(g.dailyDir)
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	if tracker.IsCompleted(endStr) {
		g.log.Info("already completed", "endDate", endStr)
		return nil
	}

	// The API takes plain Alpaca tickers; the stores key by the configured
	// instrument names. Keep a mapping so bars land under the right name.
	configured := make(map[string]string, len(g.universe))
	var apiSymbols []string
	for _, sym := range g.universe {
		api := apiSymbol(sym)
		if _, dup := configured[api]; dup {
			continue
		}
		configured[api] = sym
		apiSymbols = append(apiSymbols, api)
	}

	var batches [][]string
	for i := 0; i < len(apiSymbols); i += g.batchSize {
		batches = append(batches, apiSymbols[i:min(i+g.batchSize, len(apiSymbols))])
	}

	g.log.Info("starting us-daily",
		"endDate", endStr,
		"instruments", len(apiSymbols),
		"batches", len(batches),
	)

	batchCh := make(chan []string, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var (
		wg        sync.WaitGroup
		barsTotal atomic.Int64
		failed    atomic.Int64
		runStart  = time.Now()
	)

	for w := 0; w < min(g.maxWorkers, len(batches)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherBatch(ctx, batch, configured, start, endDate.Time())
				if err != nil {
					failed.Add(1)
					g.log.Error("batch failed", "symbols", len(batch), "err", err)
					continue
				}
				barsTotal.Add(int64(n))
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d batches failed", n, len(batches))
	}

	if err := tracker.MarkCompleted(endStr); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	g.log.Info("complete",
		"bars", barsTotal.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// gatherBatch fetches one symbol batch and writes the bars, per instrument,
// to every sink. Returns the number of bars written.
func (g *DailyBarGatherer) gatherBatch(ctx context.Context, batch []string, configured map[string]string, start, end time.Time) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, 3, time.Second, func() error {
		var err error
		multiBars, err = g.client.GetMultiBars(batch, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("GetMultiBars: %w", err)
	}

	written := 0
	for api, alpacaBars := range multiBars {
		name, ok := configured[strings.ToUpper(api)]
		if !ok {
			continue
		}
		bars := make([]domain.Bar, 0, len(alpacaBars))
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol: name,
				Date:   domain.DateOf(ab.Timestamp.UTC()),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: int64(ab.Volume),
			})
		}
		for _, sink := range g.sinks {
			if err := sink.WriteBars(ctx, name, bars); err != nil {
				return written, fmt.Errorf("writing %s: %w", name, err)
			}
		}
		written += len(bars)
	}
	return written, nil
}

// apiSymbol maps a configured instrument name like "BRK-B.US" to the plain
// ticker the Alpaca API expects.
func apiSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if i := strings.IndexByte(sym, '.'); i >= 0 {
		sym = sym[:i]
	}
	return sym
}
