package params

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"quantmom/internal/domain"
	"quantmom/internal/store"
)

// BatchRunner precomputes parameter records for a whole universe. Instruments
// have no cross dependency, so they are distributed across a bounded worker
// pool; each instrument's series is written only after its computation has
// finished, so readers never observe a partial series.
type BatchRunner struct {
	bars     store.BarStore
	paramsDB store.ParamStore
	computer *Computer
	workers  int
	log      *slog.Logger
}

// NewBatchRunner creates a BatchRunner with the given parallelism. A worker
// count below 1 is treated as 1.
func NewBatchRunner(bars store.BarStore, paramsDB store.ParamStore, computer *Computer, workers int) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		bars:     bars,
		paramsDB: paramsDB,
		computer: computer,
		workers:  workers,
		log:      slog.Default().With("component", "param-batch"),
	}
}

// Run computes and persists records for every instrument in symbols, using
// history within [start, end]. Per-instrument failures are isolated: a bad
// series is logged and skipped, never aborting the batch. Run returns the
// number of instruments completed and the first context error, if any.
func (r *BatchRunner) Run(ctx context.Context, symbols []string, start, end domain.DateInt) (int, error) {
	jobs := make(chan string)
	var done, failed atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				if err := r.computeOne(ctx, sym, start, end); err != nil {
					failed.Add(1)
					r.log.Warn("instrument failed", "symbol", sym, "error", err)
					continue
				}
				n := done.Add(1)
				if n%100 == 0 {
					r.log.Info("progress", "done", n, "total", len(symbols))
				}
			}
		}()
	}

	var ctxErr error
feed:
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- sym:
		}
	}
	close(jobs)
	wg.Wait()

	r.log.Info("batch finished",
		"completed", done.Load(), "failed", failed.Load(), "total", len(symbols))
	return int(done.Load()), ctxErr
}

func (r *BatchRunner) computeOne(ctx context.Context, symbol string, start, end domain.DateInt) error {
	bars, err := r.bars.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return fmt.Errorf("reading bars: %w", err)
	}
	if len(bars) == 0 {
		return &domain.DataGapError{Symbol: symbol, Date: start}
	}

	records := r.computer.Compute(symbol, bars)

	if err := r.paramsDB.ReplaceParameters(ctx, symbol, records); err != nil {
		return fmt.Errorf("persisting records: %w", err)
	}
	return nil
}
