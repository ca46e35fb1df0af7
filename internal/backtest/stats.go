package backtest

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"

	"quantmom/internal/domain"
)

// Metric names, as consumed by the presentation layer.
const (
	MetricOverallReturn     = "overallReturn"
	MetricCAGR              = "cagr"
	MetricStdDev            = "stdDev"
	MetricDownsideDeviation = "downsideDeviation"
	MetricSharpe            = "sharpe"
	MetricMaxDrawdown       = "maxDrawdown"
	MetricBestMonth         = "bestMonth"
	MetricWorstMonth        = "worstMonth"
	MetricProfitableMonths  = "profitableMonths"
)

const (
	tradingDaysPerYear = 252
	downsideThreshold  = 0.0
)

// MetricNames lists every metric Summarize can produce, in report order.
var MetricNames = []string{
	MetricOverallReturn,
	MetricCAGR,
	MetricStdDev,
	MetricDownsideDeviation,
	MetricSharpe,
	MetricMaxDrawdown,
	MetricBestMonth,
	MetricWorstMonth,
	MetricProfitableMonths,
}

// Summarize computes the full set of performance metrics from an equity
// curve. It is a pure function: identical inputs always yield identical
// output. Metrics that cannot be computed from the points available are
// omitted from the map, and their InsufficientDataError values are joined
// into the returned error; the map holds everything that did compute.
func Summarize(curve domain.EquityCurve, startingCapital float64, quotes []domain.RateQuote) (map[string]float64, error) {
	metrics := make(map[string]float64)
	var errs []error

	record := func(name string, v float64, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		metrics[name] = v
	}

	v, err := OverallReturn(curve, startingCapital)
	record(MetricOverallReturn, v, err)

	v, err = CAGR(curve, startingCapital)
	record(MetricCAGR, v, err)

	v, err = StdDev(curve)
	record(MetricStdDev, v, err)

	v, err = DownsideDeviation(curve)
	record(MetricDownsideDeviation, v, err)

	v, err = Sharpe(curve, quotes)
	record(MetricSharpe, v, err)

	v, err = MaxDrawdown(curve)
	record(MetricMaxDrawdown, v, err)

	monthly, err := monthlyReturns(curve)
	if err != nil {
		errs = append(errs, err)
	} else {
		best, _ := stats.Max(monthly)
		worst, _ := stats.Min(monthly)
		profitable := 0
		for _, r := range monthly {
			if r > 0 {
				profitable++
			}
		}
		metrics[MetricBestMonth] = best
		metrics[MetricWorstMonth] = worst
		metrics[MetricProfitableMonths] = float64(profitable) / float64(len(monthly))
	}

	return metrics, errors.Join(errs...)
}

// OverallReturn is the total return of the run against starting capital.
func OverallReturn(curve domain.EquityCurve, startingCapital float64) (float64, error) {
	if len(curve) < 2 {
		return 0, &domain.InsufficientDataError{Metric: MetricOverallReturn, Points: len(curve)}
	}
	return curve[len(curve)-1].Equity/startingCapital - 1, nil
}

// CAGR annualizes the overall return over the calendar days elapsed between
// the first and last curve dates.
func CAGR(curve domain.EquityCurve, startingCapital float64) (float64, error) {
	if len(curve) < 2 {
		return 0, &domain.InsufficientDataError{Metric: MetricCAGR, Points: len(curve)}
	}
	days := curve[len(curve)-1].Date.Time().Sub(curve[0].Date.Time()).Hours() / 24
	ratio := curve[len(curve)-1].Equity / startingCapital
	if days <= 0 || ratio <= 0 {
		return 0, &domain.InsufficientDataError{Metric: MetricCAGR, Points: len(curve)}
	}
	return math.Pow(ratio, 365.25/days) - 1, nil
}

// StdDev is the sample standard deviation of day-over-day percent changes.
func StdDev(curve domain.EquityCurve) (float64, error) {
	returns, err := dailyReturns(curve, MetricStdDev)
	if err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, &domain.InsufficientDataError{Metric: MetricStdDev, Points: len(curve)}
	}
	return stats.StandardDeviationSample(returns)
}

// DownsideDeviation is the root mean square of returns below the threshold.
func DownsideDeviation(curve domain.EquityCurve) (float64, error) {
	returns, err := dailyReturns(curve, MetricDownsideDeviation)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, r := range returns {
		if below := r - downsideThreshold; below < 0 {
			sum += below * below
		}
	}
	return math.Sqrt(sum / float64(len(returns))), nil
}

// Sharpe is the annualized ratio of mean excess return to its standard
// deviation, with daily returns in excess of the risk-free rate. A curve
// with zero excess-return variance (e.g. a flat price series) reports
// insufficient data instead of dividing by zero.
func Sharpe(curve domain.EquityCurve, quotes []domain.RateQuote) (float64, error) {
	returns, err := dailyReturns(curve, MetricSharpe)
	if err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, &domain.InsufficientDataError{Metric: MetricSharpe, Points: len(curve)}
	}

	riskFree := dailyRiskFree(curve, quotes)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree[i]
	}

	sd, err := stats.StandardDeviationSample(excess)
	if err != nil {
		return 0, err
	}
	if sd == 0 {
		return 0, &domain.InsufficientDataError{Metric: MetricSharpe, Points: len(curve)}
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return 0, err
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear), nil
}

// MaxDrawdown is the worst peak-to-trough decline, as a negative fraction
// of the running maximum.
func MaxDrawdown(curve domain.EquityCurve) (float64, error) {
	if len(curve) < 2 {
		return 0, &domain.InsufficientDataError{Metric: MetricMaxDrawdown, Points: len(curve)}
	}
	runningMax := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > runningMax {
			runningMax = p.Equity
		}
		if dd := (p.Equity - runningMax) / runningMax; dd < worst {
			worst = dd
		}
	}
	return worst, nil
}

// dailyReturns converts the curve into day-over-day percent changes.
func dailyReturns(curve domain.EquityCurve, metric string) ([]float64, error) {
	if len(curve) < 2 {
		return nil, &domain.InsufficientDataError{Metric: metric, Points: len(curve)}
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			return nil, &domain.InsufficientDataError{Metric: metric, Points: len(curve)}
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	return returns, nil
}

// monthlyReturns resamples equity to the last value of each calendar month
// and returns the month-over-month percent changes.
func monthlyReturns(curve domain.EquityCurve) ([]float64, error) {
	if len(curve) < 2 {
		return nil, &domain.InsufficientDataError{Metric: MetricBestMonth, Points: len(curve)}
	}

	// The curve is in date order, so the last point seen per month is the
	// month-end value.
	var monthEnds []float64
	lastMonth := -1
	for _, p := range curve {
		month := int(p.Date) / 100 // YYYYMM
		if month != lastMonth {
			monthEnds = append(monthEnds, p.Equity)
			lastMonth = month
		} else {
			monthEnds[len(monthEnds)-1] = p.Equity
		}
	}

	if len(monthEnds) < 2 {
		return nil, &domain.InsufficientDataError{Metric: MetricBestMonth, Points: len(monthEnds)}
	}
	returns := make([]float64, 0, len(monthEnds)-1)
	for i := 1; i < len(monthEnds); i++ {
		if monthEnds[i-1] == 0 {
			return nil, &domain.InsufficientDataError{Metric: MetricBestMonth, Points: len(monthEnds)}
		}
		returns = append(returns, monthEnds[i]/monthEnds[i-1]-1)
	}
	return returns, nil
}

// ---------------------------------------------------------------------------
// Risk-free rate series
// ---------------------------------------------------------------------------

// riskFreeAccrualDays is the bill term the annualized quote accrues over,
// in calendar days, and its length in trading sessions.
const (
	riskFreeAccrualDays     = 91.0
	riskFreeAccrualSessions = 63.0
)

// dailyRiskFree builds the per-session risk-free rate aligned with the
// curve's return series (one value per transition between consecutive
// points). Quotes are forward-filled across gaps; sessions before the first
// quote are backfilled from it. With no quotes at all the rate is zero.
func dailyRiskFree(curve domain.EquityCurve, quotes []domain.RateQuote) []float64 {
	rates := make([]float64, len(curve)-1)
	if len(quotes) == 0 {
		return rates
	}

	j := 0
	for i := 1; i < len(curve); i++ {
		d := curve[i].Date
		for j+1 < len(quotes) && quotes[j+1].Date <= d {
			j++
		}
		rates[i-1] = dailyRate(quotes[j].Rate)
	}
	return rates
}

// dailyRate converts an annualized quote into a per-session rate: the
// annual rate accrues over a ~91-calendar-day bill, which is then
// compounded down to a single trading session.
func dailyRate(annual float64) float64 {
	period := math.Pow(1+annual, riskFreeAccrualDays/365.0) - 1
	return math.Pow(1+period, 1.0/riskFreeAccrualSessions) - 1
}
