package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateIntRoundTrip(t *testing.T) {
	d := DateInt(20240615)

	ts := d.Time()
	want := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("Time() = %v, want %v", ts, want)
	}
	if back := DateOf(ts); back != d {
		t.Errorf("DateOf(Time()) = %v, want %v", back, d)
	}
}

func TestDateIntAddMonths(t *testing.T) {
	cases := []struct {
		in     DateInt
		months int
		want   DateInt
	}{
		{20240115, 1, 20240215},
		{20240115, 3, 20240415},
		{20231115, 3, 20240215}, // year boundary
		{20240615, 12, 20250615},
	}
	for _, c := range cases {
		if got := c.in.AddMonths(c.months); got != c.want {
			t.Errorf("%v.AddMonths(%d) = %v, want %v", c.in, c.months, got, c.want)
		}
	}
}

func TestDateIntValid(t *testing.T) {
	if !DateInt(20240615).Valid() {
		t.Error("20240615 should be valid")
	}
	for _, bad := range []DateInt{0, 2024, 20241315, 20240100} {
		if bad.Valid() {
			t.Errorf("%d should be invalid", int(bad))
		}
	}
}

func TestSeriesKey(t *testing.T) {
	cases := []struct {
		ticker string
		want   string
	}{
		{"AAPL.US", "AAPL_US"},
		{"BRK-B.US", "BRK_B_US"},
		{"msft.us", "MSFT_US"},
		{"SPY", "SPY_US"}, // no suffix to strip
	}
	for _, c := range cases {
		if got := SeriesKey(c.ticker); got != c.want {
			t.Errorf("SeriesKey(%q) = %q, want %q", c.ticker, got, c.want)
		}
	}
}

func TestBarHalted(t *testing.T) {
	if (Bar{Close: 101.5}).Halted() {
		t.Error("bar with a real close should not be halted")
	}
	if !(Bar{Close: HaltedClose}).Halted() {
		t.Error("bar with sentinel close should be halted")
	}
}

func TestParameterRecordUsable(t *testing.T) {
	warm := ParameterRecord{Momentum: 0.25, PctPositive: 0.55, PctNegative: 0.40}
	if !warm.Usable() {
		t.Error("fully warm record should be usable")
	}
	cold := ParameterRecord{Momentum: Sentinel, PctPositive: Sentinel, PctNegative: Sentinel}
	if cold.Usable() {
		t.Error("sentinel record should not be usable")
	}
	half := ParameterRecord{Momentum: 0.25, PctPositive: Sentinel, PctNegative: Sentinel}
	if half.Usable() {
		t.Error("record with sentinel fractions should not be usable")
	}
}

func TestParameterRecordFIP(t *testing.T) {
	r := ParameterRecord{Momentum: 0.30, PctPositive: 0.60, PctNegative: 0.35}
	want := 0.30 * (0.60 - 0.35)
	if got := r.FIP(); got != want {
		t.Errorf("FIP() = %v, want %v", got, want)
	}
}

func TestCapitalOverrunErrorContext(t *testing.T) {
	err := &CapitalOverrunError{
		Date:     20240615,
		Capital:  100000,
		Invested: 100500,
		Snapshot: Portfolio{
			Holdings: []Holding{{Symbol: "AAPL.US", Shares: 10, CostBasis: 150.25}},
		},
	}

	msg := err.Error()
	for _, frag := range []string{"20240615", "100500.00", "100000.00", "AAPL.US", "10"} {
		if !strings.Contains(msg, frag) {
			t.Errorf("error message missing %q: %s", frag, msg)
		}
	}

	// The typed error must survive wrapping.
	wrapped := errors.Join(errors.New("run failed"), err)
	var target *CapitalOverrunError
	if !errors.As(wrapped, &target) {
		t.Error("errors.As failed to recover CapitalOverrunError from wrapped error")
	}
}
