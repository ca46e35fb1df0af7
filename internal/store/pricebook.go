package store

import (
	"context"
	"fmt"
	"sort"

	"quantmom/internal/domain"
)

// PriceBook is an in-memory price index for one simulation run. It is
// loaded once up front with a single ranged read per instrument, so the
// simulation loop never touches the store — the per-instrument-per-day
// query pattern is designed away here.
type PriceBook struct {
	bars  map[string][]domain.Bar
	index map[string]map[domain.DateInt]int
}

// NewPriceBook builds a PriceBook from bars already in memory. Bars are
// sorted per instrument by date.
func NewPriceBook(bySymbol map[string][]domain.Bar) *PriceBook {
	pb := &PriceBook{
		bars:  make(map[string][]domain.Bar, len(bySymbol)),
		index: make(map[string]map[domain.DateInt]int, len(bySymbol)),
	}
	for sym, bars := range bySymbol {
		sorted := make([]domain.Bar, len(bars))
		copy(sorted, bars)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

		idx := make(map[domain.DateInt]int, len(sorted))
		for i, b := range sorted {
			idx[b.Date] = i
		}
		pb.bars[sym] = sorted
		pb.index[sym] = idx
	}
	return pb
}

// LoadPriceBook reads all bars for the given instruments within [start, end]
// from the store, one ranged query per instrument.
func LoadPriceBook(ctx context.Context, bs BarStore, symbols []string, start, end domain.DateInt) (*PriceBook, error) {
	bySymbol := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := bs.ReadBars(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("loading bars for %s: %w", sym, err)
		}
		bySymbol[sym] = bars
	}
	return NewPriceBook(bySymbol), nil
}

// Bar returns the instrument's bar on the given date.
func (p *PriceBook) Bar(symbol string, date domain.DateInt) (domain.Bar, bool) {
	idx, ok := p.index[symbol]
	if !ok {
		return domain.Bar{}, false
	}
	i, ok := idx[date]
	if !ok {
		return domain.Bar{}, false
	}
	return p.bars[symbol][i], true
}

// Close returns the instrument's close price on the given date. A missing
// bar or a halted session reports false.
func (p *PriceBook) Close(symbol string, date domain.DateInt) (float64, bool) {
	b, ok := p.Bar(symbol, date)
	if !ok || b.Halted() {
		return 0, false
	}
	return b.Close, true
}

// Open returns the instrument's open price on the given date. A missing
// bar or a halted session reports false.
func (p *PriceBook) Open(symbol string, date domain.DateInt) (float64, bool) {
	b, ok := p.Bar(symbol, date)
	if !ok || b.Halted() {
		return 0, false
	}
	return b.Open, true
}

// Bars returns the instrument's full loaded series in date order.
func (p *PriceBook) Bars(symbol string) []domain.Bar {
	return p.bars[symbol]
}

// Symbols returns the loaded instruments in sorted order.
func (p *PriceBook) Symbols() []string {
	symbols := make([]string, 0, len(p.bars))
	for sym := range p.bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
