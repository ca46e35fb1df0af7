package domain

import (
	"fmt"
	"strings"
)

// DataGapError reports a requested bar that is absent from the store. It is
// recoverable: mark-to-market carries the cost basis forward and sign
// classification skips the day.
type DataGapError struct {
	Symbol string
	Date   DateInt
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: no bar for %s on %s", e.Symbol, e.Date)
}

// InsufficientHistoryError reports that an instrument has fewer sessions of
// history than a rolling window needs. It is recoverable: the affected
// parameter values stay at the sentinel and the instrument is excluded from
// screening until warm.
type InsufficientHistoryError struct {
	Symbol string
	Date   DateInt
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s at %s: have %d sessions, need %d",
		e.Symbol, e.Date, e.Have, e.Need)
}

// CapitalOverrunError reports invested capital exceeding available capital
// at a construction event. This is a structural invariant of the sizing
// algorithm, so the error is fatal and carries the full diagnostic context;
// it must never be clamped away.
type CapitalOverrunError struct {
	Date     DateInt
	Capital  float64
	Invested float64
	Snapshot Portfolio
}

func (e *CapitalOverrunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "capital overrun on %s: invested %.2f exceeds available %.2f; holdings:",
		e.Date, e.Invested, e.Capital)
	for _, h := range e.Snapshot.Holdings {
		fmt.Fprintf(&b, " %s=%d@%.4f", h.Symbol, h.Shares, h.CostBasis)
	}
	return b.String()
}

// InsufficientDataError reports that a statistic could not be computed from
// the points available. The metric is omitted rather than reported as
// NaN or garbage.
type InsufficientDataError struct {
	Metric string
	Points int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %d usable points", e.Metric, e.Points)
}
