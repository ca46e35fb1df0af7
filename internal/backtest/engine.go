// Package backtest drives the walk-forward simulation: a strictly
// sequential date loop that marks the active portfolio to market, appends
// the daily equity point, and rebuilds the portfolio at each rebalance
// boundary. It also houses the statistics layer computed from the
// resulting equity curve.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"quantmom/internal/domain"
	"quantmom/internal/portfolio"
	"quantmom/internal/store"
)

// GapPolicy selects the mark-to-market behaviour when a held instrument has
// no usable price on a session.
type GapPolicy int

const (
	// GapCarry substitutes the cost basis, i.e. zero unrealized change for
	// that name on that day. Recoverable; the default.
	GapCarry GapPolicy = iota
	// GapAbort stops the run on the first missing price.
	GapAbort
)

// ParseGapPolicy maps the configuration string to a GapPolicy.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "carry":
		return GapCarry, nil
	case "abort":
		return GapAbort, nil
	default:
		return GapCarry, fmt.Errorf("unknown price gap policy %q", s)
	}
}

// Engine owns the portfolio state of one simulation run. State on a date
// depends only on the previous date's state and that date's bar, so the
// loop is strictly sequential; distinct Engine instances are independent
// and may run concurrently.
type Engine struct {
	constructor *portfolio.Constructor
	prices      *store.PriceBook
	calendar    []domain.DateInt

	startDate       domain.DateInt
	endDate         domain.DateInt
	startingCapital float64
	rebalanceMonths int
	gapPolicy       GapPolicy

	log *slog.Logger
}

// Options bundles the run parameters of an Engine.
type Options struct {
	StartDate       domain.DateInt
	EndDate         domain.DateInt
	StartingCapital float64
	RebalanceMonths int
	GapPolicy       GapPolicy
}

// NewEngine wires an Engine over preloaded prices and a constructor.
func NewEngine(constructor *portfolio.Constructor, prices *store.PriceBook, calendar []domain.DateInt, opts Options) *Engine {
	return &Engine{
		constructor:     constructor,
		prices:          prices,
		calendar:        calendar,
		startDate:       opts.StartDate,
		endDate:         opts.EndDate,
		startingCapital: opts.StartingCapital,
		rebalanceMonths: opts.RebalanceMonths,
		gapPolicy:       opts.GapPolicy,
		log:             slog.Default().With("component", "engine"),
	}
}

// Run executes the simulation and returns the finalized equity curve, one
// point per trading-calendar date in [startDate, endDate]. If ctx is
// cancelled mid-run the curve built so far is returned alongside the
// context error.
func (e *Engine) Run(ctx context.Context) (domain.EquityCurve, error) {
	dates := e.datesInRange()
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trading dates in %v..%v", e.startDate, e.endDate)
	}

	port, err := e.constructor.Construct(e.startingCapital, e.startDate)
	if err != nil {
		return nil, fmt.Errorf("initial construction at %v: %w", e.startDate, err)
	}
	nextRebalance := e.startDate.AddMonths(e.rebalanceMonths)

	curve := make(domain.EquityCurve, 0, len(dates))
	prev := domain.DateInt(0)

	for _, d := range dates {
		select {
		case <-ctx.Done():
			return curve, ctx.Err()
		default:
		}

		// The calendar is the ground truth of the run; out-of-order dates
		// are a data-quality failure, never silently reordered.
		if d <= prev {
			return curve, fmt.Errorf("trading calendar not strictly ascending: %v after %v", d, prev)
		}
		prev = d

		equity, err := e.markToMarket(port, d)
		if err != nil {
			return curve, err
		}
		total := equity + port.CashRemaining
		curve = append(curve, domain.EquityPoint{Date: d, Equity: total})

		if d >= nextRebalance {
			// The marked equity is treated as realized and redeployed.
			e.log.Debug("rebalancing", "date", d, "capital", total)
			port, err = e.constructor.Construct(total, d)
			if err != nil {
				return curve, fmt.Errorf("rebalance at %v: %w", d, err)
			}
			nextRebalance = d.AddMonths(e.rebalanceMonths)
		}
	}

	return curve, nil
}

// markToMarket values the invested part of the portfolio at date d.
func (e *Engine) markToMarket(port *domain.Portfolio, d domain.DateInt) (float64, error) {
	equity := port.CapitalInvested
	for _, h := range port.Holdings {
		price, ok := e.prices.Close(h.Symbol, d)
		if !ok {
			if e.gapPolicy == GapAbort {
				return 0, &domain.DataGapError{Symbol: h.Symbol, Date: d}
			}
			price = h.CostBasis // carry: zero unrealized change today
		}
		equity += (price - h.CostBasis) * float64(h.Shares)
	}
	return equity, nil
}

// datesInRange returns the calendar dates within [startDate, endDate].
func (e *Engine) datesInRange() []domain.DateInt {
	var dates []domain.DateInt
	for _, d := range e.calendar {
		if d >= e.startDate && d <= e.endDate {
			dates = append(dates, d)
		}
	}
	return dates
}
