package gather

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"quantmom/internal/domain"
	"quantmom/internal/store"
)

var _ Gatherer = (*RateGatherer)(nil)

// rateRow is one line of the risk-free CSV: an observation date in YYYYMMDD
// form and the annualized rate as a decimal fraction.
type rateRow struct {
	Date int     `csv:"date"`
	Rate float64 `csv:"rate"`
}

// RateGatherer ingests the annualized risk-free-rate series from a CSV file
// into the rate store.
type RateGatherer struct {
	csvPath string
	store   store.RateStore
	log     *slog.Logger
}

// NewRateGatherer creates a RateGatherer reading from csvPath and writing to s.
func NewRateGatherer(csvPath string, s store.RateStore) *RateGatherer {
	return &RateGatherer{
		csvPath: csvPath,
		store:   s,
		log:     slog.Default().With("gatherer", "risk-free"),
	}
}

// Name returns the gatherer identifier.
func (g *RateGatherer) Name() string { return "risk-free" }

// Run parses the CSV and upserts every quote. Rows with invalid dates are
// rejected rather than skipped, so a malformed file never half-loads.
func (g *RateGatherer) Run(ctx context.Context) error {
	quotes, err := ParseRateCSV(g.csvPath)
	if err != nil {
		return err
	}
	if err := g.store.WriteRates(ctx, quotes); err != nil {
		return fmt.Errorf("writing rates: %w", err)
	}
	g.log.Info("risk-free series loaded", "quotes", len(quotes), "path", g.csvPath)
	return nil
}

// ParseRateCSV reads a date,rate CSV into rate quotes sorted by date.
func ParseRateCSV(path string) ([]domain.RateQuote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rate CSV: %w", err)
	}
	defer f.Close()

	var rows []rateRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	quotes := make([]domain.RateQuote, 0, len(rows))
	for i, row := range rows {
		d := domain.DateInt(row.Date)
		if !d.Valid() {
			return nil, fmt.Errorf("%s row %d: invalid date %d", path, i+1, row.Date)
		}
		quotes = append(quotes, domain.RateQuote{Date: d, Rate: row.Rate})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Date < quotes[j].Date })
	return quotes, nil
}
