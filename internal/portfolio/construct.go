// Package portfolio turns ranked momentum signals into a sized portfolio.
// Selection is a two-stage bounded ranking: a top-decile momentum screen,
// then a top-K ranking by consistency-adjusted momentum. Both stages use a
// size-bounded min-heap rather than a full sort over the universe.
package portfolio

import (
	"container/heap"
	"log/slog"
	"math"
	"sort"

	"quantmom/internal/domain"
	"quantmom/internal/params"
	"quantmom/internal/store"
)

// momentumScreenFraction is the share of the universe retained by the
// first-stage momentum screen.
const momentumScreenFraction = 0.10

// Constructor builds portfolios from precomputed signals. All inputs are
// loaded before any simulation starts; Construct itself performs no store
// reads.
type Constructor struct {
	table     *params.Table
	prices    *store.PriceBook
	calendar  []domain.DateInt // ascending trading dates
	universe  []string
	firmsHeld int
	slippage  float64
	log       *slog.Logger
}

// NewConstructor wires a Constructor from its preloaded inputs.
func NewConstructor(table *params.Table, prices *store.PriceBook, calendar []domain.DateInt, universe []string, firmsHeld int, slippage float64) *Constructor {
	return &Constructor{
		table:     table,
		prices:    prices,
		calendar:  calendar,
		universe:  universe,
		firmsHeld: firmsHeld,
		slippage:  slippage,
		log:       slog.Default().With("component", "constructor"),
	}
}

// Construct selects and sizes a portfolio from the signals available at
// asOf. The screen and ranking use only records as of the decision date;
// entries execute at the following trading date's open, slippage-adjusted.
// A name whose per-name allocation cannot buy a single share is dropped.
// Invested capital exceeding currentCapital is a defect in the sizing
// algorithm and surfaces as a fatal CapitalOverrunError.
func (c *Constructor) Construct(currentCapital float64, asOf domain.DateInt) (*domain.Portfolio, error) {
	screened := c.screen(asOf)
	selected := rankTop(screened, c.firmsHeld, domain.ParameterRecord.FIP)

	port := &domain.Portfolio{
		CashRemaining: currentCapital,
		DecisionDate:  asOf,
	}

	execDate, ok := c.nextTradingDate(asOf)
	if !ok || len(selected) == 0 {
		// Nothing to buy, or the decision date is the final session: the
		// period is held in cash.
		return port, nil
	}
	port.ExecutionDate = execDate

	capitalPerName := currentCapital / float64(min(c.firmsHeld, len(selected)))

	var invested float64
	for _, rec := range selected {
		open, ok := c.prices.Open(rec.Symbol, execDate)
		if !ok {
			// Recoverable per-instrument gap: the name is skipped, not the run.
			c.log.Debug("no entry price", "symbol", rec.Symbol, "date", execDate)
			continue
		}
		entry := open * (1 + c.slippage)
		shares := int64(math.Floor(capitalPerName / entry))
		if shares == 0 {
			continue // not affordable at this capital level
		}
		invested += float64(shares) * entry
		port.Holdings = append(port.Holdings, domain.Holding{
			Symbol:    rec.Symbol,
			Shares:    shares,
			CostBasis: entry,
		})
	}

	if invested > currentCapital*(1+1e-9) {
		return nil, &domain.CapitalOverrunError{
			Date:     asOf,
			Capital:  currentCapital,
			Invested: invested,
			Snapshot: *port,
		}
	}

	port.CapitalInvested = invested
	port.CashRemaining = currentCapital - invested
	return port, nil
}

// ScreenSize returns the bound of the first-stage momentum screen:
// ceil(universeSize × 0.10).
func (c *Constructor) ScreenSize() int {
	return int(math.Ceil(float64(len(c.universe)) * momentumScreenFraction))
}

// screen retains the top decile of the universe by momentum among
// instruments with a usable record at the decision date.
func (c *Constructor) screen(asOf domain.DateInt) []domain.ParameterRecord {
	h := &boundedMinHeap{bound: c.ScreenSize(), score: func(r domain.ParameterRecord) float64 { return r.Momentum }}
	for _, sym := range c.universe {
		rec, ok := c.table.At(sym, asOf)
		if !ok || !rec.Usable() {
			continue // cold or missing instruments never reach the screen
		}
		h.add(rec)
	}
	return h.items
}

// rankTop retains the top k of recs by the given score.
func rankTop(recs []domain.ParameterRecord, k int, score func(domain.ParameterRecord) float64) []domain.ParameterRecord {
	h := &boundedMinHeap{bound: k, score: score}
	for _, rec := range recs {
		h.add(rec)
	}
	// Deterministic output order: best score first, ties by symbol.
	sort.Slice(h.items, func(i, j int) bool {
		si, sj := score(h.items[i]), score(h.items[j])
		if si != sj {
			return si > sj
		}
		return h.items[i].Symbol < h.items[j].Symbol
	})
	return h.items
}

// nextTradingDate returns the first calendar date strictly after asOf.
func (c *Constructor) nextTradingDate(asOf domain.DateInt) (domain.DateInt, bool) {
	i := sort.Search(len(c.calendar), func(i int) bool { return c.calendar[i] > asOf })
	if i == len(c.calendar) {
		return 0, false
	}
	return c.calendar[i], true
}

// ---------------------------------------------------------------------------
// Bounded min-heap
// ---------------------------------------------------------------------------

// boundedMinHeap keeps the top `bound` records by score: push, then pop the
// minimum whenever the size exceeds the bound. Equal scores break by symbol
// ascending — the entry with the greater symbol is evicted first — which
// makes the retained set identical to a stable full sort's top slice.
type boundedMinHeap struct {
	items []domain.ParameterRecord
	bound int
	score func(domain.ParameterRecord) float64
}

func (h *boundedMinHeap) add(rec domain.ParameterRecord) {
	if h.bound <= 0 {
		return
	}
	heap.Push(h, rec)
	if len(h.items) > h.bound {
		heap.Pop(h)
	}
}

func (h *boundedMinHeap) Len() int { return len(h.items) }

func (h *boundedMinHeap) Less(i, j int) bool {
	si, sj := h.score(h.items[i]), h.score(h.items[j])
	if si != sj {
		return si < sj
	}
	return h.items[i].Symbol > h.items[j].Symbol
}

func (h *boundedMinHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *boundedMinHeap) Push(x any) { h.items = append(h.items, x.(domain.ParameterRecord)) }

func (h *boundedMinHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
