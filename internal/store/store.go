// Package store defines the market-data storage interfaces for the quantmom
// platform — daily bars, precomputed parameter records, the risk-free-rate
// series, and the trading calendar — together with SQLite and Parquet
// implementations.
package store

import (
	"context"

	"quantmom/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars, keyed by instrument and
// date. Reads are batched by range; callers must never issue one read per
// instrument per day.
type BarStore interface {
	// WriteBars persists a batch of bars for one instrument.
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error

	// ReadBars returns the instrument's bars within [start, end], in date order.
	ReadBars(ctx context.Context, symbol string, start, end domain.DateInt) ([]domain.Bar, error)

	// ListSymbols returns all instruments with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ParamStore persists and retrieves precomputed parameter records, keyed by
// (instrument, date). Recomputation replaces an instrument's full series.
type ParamStore interface {
	// ReplaceParameters atomically replaces the instrument's whole series.
	ReplaceParameters(ctx context.Context, symbol string, records []domain.ParameterRecord) error

	// ReadParameters returns the instrument's records within [start, end],
	// in date order.
	ReadParameters(ctx context.Context, symbol string, start, end domain.DateInt) ([]domain.ParameterRecord, error)
}

// RateStore persists and retrieves the annualized risk-free-rate series.
type RateStore interface {
	// WriteRates upserts a batch of rate quotes.
	WriteRates(ctx context.Context, quotes []domain.RateQuote) error

	// ReadRates returns quotes within [start, end], in date order.
	ReadRates(ctx context.Context, start, end domain.DateInt) ([]domain.RateQuote, error)
}

// CalendarSource supplies the trading calendar: the dates on which a
// reference instrument has a stored bar.
type CalendarSource interface {
	// TradingCalendar returns the reference instrument's bar dates within
	// [start, end], ascending.
	TradingCalendar(ctx context.Context, refSymbol string, start, end domain.DateInt) ([]domain.DateInt, error)
}
