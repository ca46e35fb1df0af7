package params

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"quantmom/internal/domain"
)

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	date := domain.DateInt(20200102)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol: "TEST.US",
			Date:   date,
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
		date = domain.DateOf(date.Time().AddDate(0, 0, 1))
	}
	return bars
}

// bruteForceFractions recomputes the positive/negative day fractions from
// scratch for every session, O(n·window), as an oracle for the incremental
// implementation.
func bruteForceFractions(bars []domain.Bar, conDays int) (pos, neg []float64) {
	pos = make([]float64, len(bars))
	neg = make([]float64, len(bars))

	var classified []int // +1, -1, 0 per classified session, in order
	prev := math.NaN()

	for i, bar := range bars {
		if !bar.Halted() {
			if !math.IsNaN(prev) {
				switch diff := bar.Close - prev; {
				case diff > 0:
					classified = append(classified, 1)
				case diff < 0:
					classified = append(classified, -1)
				default:
					classified = append(classified, 0)
				}
			}
			prev = bar.Close
		}

		pos[i], neg[i] = domain.Sentinel, domain.Sentinel
		if len(classified) >= conDays {
			window := classified[len(classified)-conDays:]
			p, n := 0, 0
			for _, s := range window {
				switch s {
				case 1:
					p++
				case -1:
					n++
				}
			}
			pos[i] = float64(p) / float64(conDays)
			neg[i] = float64(n) / float64(conDays)
		}
	}
	return pos, neg
}

func TestComputeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	closes := make([]float64, 400)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.04
		closes[i] = price
		// Sprinkle halted sessions through the series.
		if rng.Intn(25) == 0 {
			closes[i] = domain.HaltedClose
		}
	}
	bars := barsFromCloses(closes)

	c := &Computer{momDays: 60, conDays: 20}
	records := c.Compute("TEST.US", bars)

	wantPos, wantNeg := bruteForceFractions(bars, c.conDays)
	for i, rec := range records {
		if rec.PctPositive != wantPos[i] || rec.PctNegative != wantNeg[i] {
			t.Fatalf("day %d: fractions = (%v, %v), brute force = (%v, %v)",
				i, rec.PctPositive, rec.PctNegative, wantPos[i], wantNeg[i])
		}
	}
}

func TestComputeWarmupSentinels(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes)

	c := &Computer{momDays: 10, conDays: 5}
	records := c.Compute("TEST.US", bars)

	if len(records) != len(bars) {
		t.Fatalf("Compute returned %d records for %d bars", len(records), len(bars))
	}

	// Momentum is sentinel for t < momDays, real afterwards.
	for i := 0; i < c.momDays; i++ {
		if records[i].Momentum != domain.Sentinel {
			t.Errorf("day %d: momentum = %v, want sentinel before warm-up", i, records[i].Momentum)
		}
	}
	if records[c.momDays].Momentum == domain.Sentinel {
		t.Errorf("day %d: momentum still sentinel after warm-up", c.momDays)
	}

	// Fractions warm once conDays sessions have been classified; day 0 has
	// no prior close, so warm-up completes at index conDays.
	for i := 0; i < c.conDays; i++ {
		if records[i].PctPositive != domain.Sentinel {
			t.Errorf("day %d: pctPositive = %v, want sentinel before warm-up", i, records[i].PctPositive)
		}
	}
	if records[c.conDays].PctPositive != 1.0 {
		t.Errorf("day %d: pctPositive = %v, want 1.0 for a strictly rising series",
			c.conDays, records[c.conDays].PctPositive)
	}
	if records[c.conDays].PctNegative != 0.0 {
		t.Errorf("day %d: pctNegative = %v, want 0.0", c.conDays, records[c.conDays].PctNegative)
	}
}

// A close that doubles linearly over 252 sessions must produce a momentum
// record equal to close[t]/close[t-252] - 1 exactly once warm.
func TestComputeLinearDoubling(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 100*float64(i)/252
	}
	bars := barsFromCloses(closes)

	c := NewComputer(12, 1)
	if c.MomentumDays() != 252 {
		t.Fatalf("MomentumDays = %d, want 252 for a 12-month lookback", c.MomentumDays())
	}

	records := c.Compute("TEST.US", bars)
	if got := records[252].Momentum; got != 1.0 {
		t.Errorf("momentum at day 252 = %v, want exactly 1.0", got)
	}
	for i := 252; i < len(bars); i++ {
		want := bars[i].Close/bars[i-252].Close - 1
		if records[i].Momentum != want {
			t.Errorf("day %d: momentum = %v, want %v", i, records[i].Momentum, want)
		}
	}
}

// A halted session inserted mid-window must leave the sign counters
// identical to the same series with that session removed.
func TestComputeHaltedDayNeutral(t *testing.T) {
	base := []float64{100, 101, 99, 102, 103, 101, 104, 105, 103, 106, 107, 108}
	halted := make([]float64, 0, len(base)+1)
	halted = append(halted, base[:6]...)
	halted = append(halted, domain.HaltedClose)
	halted = append(halted, base[6:]...)

	c := &Computer{momDays: 50, conDays: 4}
	baseRecs := c.Compute("TEST.US", barsFromCloses(base))
	haltRecs := c.Compute("TEST.US", barsFromCloses(halted))

	// After the insertion point, record i+1 of the halted series lines up
	// with record i of the base series.
	for i := 6; i < len(base); i++ {
		b, h := baseRecs[i], haltRecs[i+1]
		if b.PctPositive != h.PctPositive || b.PctNegative != h.PctNegative {
			t.Errorf("day %d: fractions (%v, %v) with halt vs (%v, %v) without",
				i, h.PctPositive, h.PctNegative, b.PctPositive, b.PctNegative)
		}
	}
}

func TestComputeHaltedMomentumEndpoint(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	closes[3] = domain.HaltedClose // becomes the base bar for day 13
	bars := barsFromCloses(closes)

	c := &Computer{momDays: 10, conDays: 5}
	records := c.Compute("TEST.US", bars)

	if records[13].Momentum != domain.Sentinel {
		t.Errorf("momentum with halted base bar = %v, want sentinel", records[13].Momentum)
	}
	if records[14].Momentum == domain.Sentinel {
		t.Errorf("momentum with clean endpoints should not be sentinel")
	}
}

func TestWindowDays(t *testing.T) {
	cases := []struct {
		months int
		want   int
	}{
		{12, 252},
		{1, 21},
		{3, 63},
		{6, 126},
		{36, 756},
	}
	for _, c := range cases {
		if got := WindowDays(c.months); got != c.want {
			t.Errorf("WindowDays(%d) = %d, want %d", c.months, got, c.want)
		}
	}
}

func TestTableAt(t *testing.T) {
	table := NewTable(map[string][]domain.ParameterRecord{
		"AAPL.US": {
			{Symbol: "AAPL.US", Date: 20240105, Momentum: 0.2},
			{Symbol: "AAPL.US", Date: 20240102, Momentum: 0.1},
		},
	})

	// Exact date.
	rec, ok := table.At("AAPL.US", 20240102)
	if !ok || rec.Momentum != 0.1 {
		t.Errorf("At(20240102) = %+v, %v; want first record", rec, ok)
	}
	// Between dates rolls forward.
	rec, ok = table.At("AAPL.US", 20240103)
	if !ok || rec.Date != 20240105 {
		t.Errorf("At(20240103) = %+v, %v; want 20240105 record", rec, ok)
	}
	// Past the last record.
	if _, ok := table.At("AAPL.US", 20240110); ok {
		t.Error("At past the series end should report false")
	}
	// Unknown symbol.
	if _, ok := table.At("MSFT.US", 20240102); ok {
		t.Error("At for an unknown symbol should report false")
	}
}

// ---------------------------------------------------------------------------
// Batch runner
// ---------------------------------------------------------------------------

// memStores is an in-memory BarStore + ParamStore for batch tests.
type memStores struct {
	bars   map[string][]domain.Bar
	params map[string][]domain.ParameterRecord
}

func (m *memStores) WriteBars(_ context.Context, symbol string, bars []domain.Bar) error {
	m.bars[symbol] = append(m.bars[symbol], bars...)
	return nil
}

func (m *memStores) ReadBars(_ context.Context, symbol string, start, end domain.DateInt) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range m.bars[symbol] {
		if b.Date >= start && b.Date <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStores) ListSymbols(_ context.Context) ([]string, error) { return nil, nil }

func (m *memStores) ReplaceParameters(_ context.Context, symbol string, records []domain.ParameterRecord) error {
	m.params[symbol] = records
	return nil
}

func (m *memStores) ReadParameters(_ context.Context, symbol string, start, end domain.DateInt) ([]domain.ParameterRecord, error) {
	var out []domain.ParameterRecord
	for _, r := range m.params[symbol] {
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestBatchRunnerIsolatesFailures(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	m := &memStores{
		bars:   map[string][]domain.Bar{"GOOD.US": barsFromCloses(closes), "ALSO.US": barsFromCloses(closes)},
		params: map[string][]domain.ParameterRecord{},
	}

	runner := NewBatchRunner(m, m, &Computer{momDays: 10, conDays: 5}, 4)
	// EMPTY.US has no bars at all; the batch must still complete the others.
	done, err := runner.Run(context.Background(), []string{"GOOD.US", "EMPTY.US", "ALSO.US"}, 20200101, 20201231)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if done != 2 {
		t.Errorf("Run completed %d instruments, want 2", done)
	}
	if len(m.params["GOOD.US"]) != 40 {
		t.Errorf("GOOD.US has %d persisted records, want 40", len(m.params["GOOD.US"]))
	}
	if _, ok := m.params["EMPTY.US"]; ok {
		t.Error("EMPTY.US should not have persisted records")
	}
}
