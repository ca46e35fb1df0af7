// Package params computes rolling momentum and trend-consistency signals
// per instrument. Computation is incremental: each new session costs O(1)
// amortized work, against O(window) for recomputing the counters from
// scratch every day.
package params

import (
	"math"

	"github.com/gammazero/deque"

	"quantmom/internal/domain"
)

// WindowDays converts a window expressed in calendar months into trading
// sessions at 252 sessions per year.
func WindowDays(months int) int {
	return int(math.Round(float64(months) / 12.0 * 252.0))
}

// daySign classifies one session against the previous tradable close.
type daySign int8

const (
	signFlat daySign = iota
	signPositive
	signNegative
)

// Computer produces parameter records from an instrument's full bar history.
// It is stateless across instruments; one Computer may be shared by many
// goroutines computing distinct instruments.
type Computer struct {
	momDays int // momentum lookback, in sessions
	conDays int // consistency window, in sessions
}

// NewComputer creates a Computer for the given lookback and consistency
// windows, both in months.
func NewComputer(lookbackMonths, consistencyWindowMonths int) *Computer {
	return &Computer{
		momDays: WindowDays(lookbackMonths),
		conDays: WindowDays(consistencyWindowMonths),
	}
}

// MomentumDays returns the momentum lookback in sessions.
func (c *Computer) MomentumDays() int { return c.momDays }

// ConsistencyDays returns the consistency window in sessions.
func (c *Computer) ConsistencyDays() int { return c.conDays }

// Compute returns one parameter record per bar, in date order. Values are
// the sentinel until the respective window is warm. Halted sessions never
// enter the sign counters: a halted day is skipped entirely, and the next
// tradable day classifies against the last close before the halt, so the
// counters match what the same series without the halted day would produce.
func (c *Computer) Compute(symbol string, bars []domain.Bar) []domain.ParameterRecord {
	records := make([]domain.ParameterRecord, len(bars))

	var window deque.Deque[daySign]
	positiveSum, negativeSum := 0, 0
	prevClose := math.NaN() // last non-halted close seen

	for i, bar := range bars {
		if !bar.Halted() {
			if !math.IsNaN(prevClose) {
				// Evict the session leaving the window before admitting the
				// new one, undoing its stored contribution.
				if window.Len() == c.conDays {
					switch window.PopFront() {
					case signPositive:
						positiveSum--
					case signNegative:
						negativeSum--
					}
				}

				s := signFlat
				switch diff := bar.Close - prevClose; {
				case diff > 0:
					s = signPositive
					positiveSum++
				case diff < 0:
					s = signNegative
					negativeSum++
				}
				window.PushBack(s)
			}
			prevClose = bar.Close
		}

		rec := domain.ParameterRecord{
			Symbol:      symbol,
			Date:        bar.Date,
			Momentum:    domain.Sentinel,
			PctPositive: domain.Sentinel,
			PctNegative: domain.Sentinel,
		}

		if window.Len() >= c.conDays {
			rec.PctPositive = float64(positiveSum) / float64(c.conDays)
			rec.PctNegative = float64(negativeSum) / float64(c.conDays)
		}

		if i >= c.momDays {
			base := bars[i-c.momDays]
			if !bar.Halted() && !base.Halted() {
				rec.Momentum = bar.Close/base.Close - 1
			}
		}

		records[i] = rec
	}

	return records
}
