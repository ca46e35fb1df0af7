package params

import (
	"context"
	"fmt"
	"sort"

	"quantmom/internal/domain"
	"quantmom/internal/store"
)

// Table is an in-memory index of parameter records for one simulation run,
// loaded with one ranged read per instrument before the date loop starts.
type Table struct {
	records map[string][]domain.ParameterRecord
}

// NewTable builds a Table from records already in memory, sorting each
// instrument's series by date.
func NewTable(bySymbol map[string][]domain.ParameterRecord) *Table {
	t := &Table{records: make(map[string][]domain.ParameterRecord, len(bySymbol))}
	for sym, recs := range bySymbol {
		sorted := make([]domain.ParameterRecord, len(recs))
		copy(sorted, recs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
		t.records[sym] = sorted
	}
	return t
}

// LoadTable reads the parameter series for the given instruments within
// [start, end] from the store.
func LoadTable(ctx context.Context, ps store.ParamStore, symbols []string, start, end domain.DateInt) (*Table, error) {
	bySymbol := make(map[string][]domain.ParameterRecord, len(symbols))
	for _, sym := range symbols {
		recs, err := ps.ReadParameters(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("loading parameters for %s: %w", sym, err)
		}
		bySymbol[sym] = recs
	}
	return NewTable(bySymbol), nil
}

// At returns the instrument's first record dated at or after asOf. In a
// complete series this is the asOf session itself; the at-or-after lookup
// only matters when the instrument did not trade that day.
func (t *Table) At(symbol string, asOf domain.DateInt) (domain.ParameterRecord, bool) {
	recs := t.records[symbol]
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Date >= asOf })
	if i == len(recs) {
		return domain.ParameterRecord{}, false
	}
	return recs[i], true
}

// Symbols returns the instruments present in the table, sorted.
func (t *Table) Symbols() []string {
	symbols := make([]string, 0, len(t.records))
	for sym := range t.records {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
