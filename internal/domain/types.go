// Package domain defines the core types shared across the quantmom
// platform: daily bars, momentum parameter records, portfolios, and equity
// curves, together with the YYYYMMDD integer date representation used at
// every storage boundary.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

// DateInt is a calendar date in 8-digit YYYYMMDD integer form, the
// representation used for bars, parameter records, and equity points at the
// storage boundary.
type DateInt int

// DateOf converts a time.Time to its DateInt form, dropping the time of day.
func DateOf(t time.Time) DateInt {
	return DateInt(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// Time converts the date to a time.Time at midnight UTC.
func (d DateInt) Time() time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Year returns the four-digit year component.
func (d DateInt) Year() int { return int(d) / 10000 }

// Month returns the month component (1-12).
func (d DateInt) Month() int { return (int(d) / 100) % 100 }

// Day returns the day-of-month component.
func (d DateInt) Day() int { return int(d) % 100 }

// AddMonths returns the date advanced by n calendar months, normalized the
// way time.AddDate normalizes (e.g. Jan 31 + 1 month = Mar 2/3).
func (d DateInt) AddMonths(n int) DateInt {
	return DateOf(d.Time().AddDate(0, n, 0))
}

// Valid reports whether the value is a plausible 8-digit calendar date.
func (d DateInt) Valid() bool {
	if d < 10000101 || d > 99991231 {
		return false
	}
	m, day := d.Month(), d.Day()
	return m >= 1 && m <= 12 && day >= 1 && day <= 31
}

func (d DateInt) String() string {
	return fmt.Sprintf("%08d", int(d))
}

// ---------------------------------------------------------------------------
// Bars
// ---------------------------------------------------------------------------

// HaltedClose is the close-price sentinel marking a session on which the
// instrument did not trade.
const HaltedClose = -1

// Bar is a single daily OHLCV bar for one instrument.
type Bar struct {
	Symbol string
	Date   DateInt
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Halted reports whether the bar carries the halted/no-trade sentinel.
func (b Bar) Halted() bool { return b.Close == HaltedClose }

// SeriesKey maps a ticker to its deterministic storage series key: the
// exchange suffix (".US" style, three characters) is stripped, characters
// not allowed in storage identifiers are normalized to underscores, and the
// market tag is appended. "BRK-B.US" becomes "BRK_B_US".
func SeriesKey(ticker string) string {
	key := strings.ToUpper(ticker)
	if len(key) > 3 && key[len(key)-3] == '.' {
		key = key[:len(key)-3]
	}
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return key + "_US"
}

// ---------------------------------------------------------------------------
// Parameter records
// ---------------------------------------------------------------------------

// Sentinel marks a parameter value that could not be computed, either
// because the warm-up period is not yet satisfied or because an endpoint
// bar was halted.
const Sentinel = -1

// ParameterRecord holds the rolling momentum and trend-consistency signals
// for one instrument on one date.
type ParameterRecord struct {
	Symbol      string
	Date        DateInt
	Momentum    float64 // trailing total return over the lookback window
	PctPositive float64 // fraction of positive days in the consistency window
	PctNegative float64 // fraction of negative days in the consistency window
}

// Usable reports whether every field is past warm-up, i.e. carries no
// sentinel; only usable records participate in screening.
func (r ParameterRecord) Usable() bool {
	return r.Momentum != Sentinel && r.PctPositive != Sentinel && r.PctNegative != Sentinel
}

// FIP is the consistency-adjusted momentum score used for final ranking:
// momentum scaled by the excess of positive over negative days. It rewards
// gradual trends over abrupt moves.
func (r ParameterRecord) FIP() float64 {
	return r.Momentum * (r.PctPositive - r.PctNegative)
}

// ---------------------------------------------------------------------------
// Portfolios
// ---------------------------------------------------------------------------

// Holding is a sized position in one instrument.
type Holding struct {
	Symbol    string
	Shares    int64   // whole shares, never negative
	CostBasis float64 // per-share entry price including slippage
}

// Portfolio is the set of holdings produced by one construction event.
// CapitalInvested + CashRemaining equals the capital available at
// construction, within floating tolerance, and CashRemaining is never
// negative.
type Portfolio struct {
	Holdings        []Holding
	CapitalInvested float64
	CashRemaining   float64
	DecisionDate    DateInt // signal as-of date
	ExecutionDate   DateInt // trading date whose open filled the entries
}

// ---------------------------------------------------------------------------
// Equity curves and rates
// ---------------------------------------------------------------------------

// EquityPoint is total account value (marked positions plus cash) on one
// trading date.
type EquityPoint struct {
	Date   DateInt
	Equity float64
}

// EquityCurve is a chronologically ordered series of equity points, one per
// trading-calendar date of a simulation run. It is append-only while the
// run is active and immutable afterwards.
type EquityCurve []EquityPoint

// RateQuote is an annualized risk-free rate observation, expressed as a
// decimal (0.05 = 5%).
type RateQuote struct {
	Date DateInt
	Rate float64
}
