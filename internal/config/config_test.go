package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "quantmom-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp config: %v", err)
	}
	return tmpFile.Name()
}

const sampleYAML = `
storage:
  data_dir: "/tmp/quantmom/data"
  sqlite_path: "/tmp/quantmom/quantmom.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
logging:
  level: "info"
  format: "json"
gather:
  start_date: "2010-01-01"
  batch_size: 500
  max_workers: 8
  rate_limit_per_min: 200
  risk_free_csv: "reference/tbill_13w.csv"
backtest:
  lookback_months: 12
  consistency_window_months: 3
  rebalance_period_months: 3
  firms_held: 50
  start_date: 20150105
  end_date: 20231229
  starting_capital: 100000
  slippage_factor: 0.002
  universe: ["AAPL.US", "MSFT.US", "BRK-B.US"]
  reference_symbol: "SPY.US"
  price_gap_policy: "carry"
  max_workers: 4
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.SQLitePath != "/tmp/quantmom/quantmom.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/quantmom/quantmom.db")
	}
	if cfg.Backtest.LookbackMonths != 12 {
		t.Errorf("LookbackMonths = %d, want 12", cfg.Backtest.LookbackMonths)
	}
	if cfg.Backtest.StartDate != 20150105 {
		t.Errorf("StartDate = %v, want 20150105", cfg.Backtest.StartDate)
	}
	if len(cfg.Backtest.Universe) != 3 {
		t.Errorf("Universe has %d symbols, want 3", len(cfg.Backtest.Universe))
	}
	if err := cfg.Backtest.Validate(); err != nil {
		t.Errorf("Validate returned error for valid config: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	t.Setenv("SQLITE_PATH", "/override/quantmom.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.SQLitePath != "/override/quantmom.db" {
		t.Errorf("SQLitePath = %q, want env override", cfg.Storage.SQLitePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestValidateRejectsOffPresetValues(t *testing.T) {
	base := func() BacktestConfig {
		return BacktestConfig{
			LookbackMonths:          12,
			ConsistencyWindowMonths: 3,
			RebalancePeriodMonths:   3,
			FirmsHeld:               50,
			StartDate:               20150105,
			EndDate:                 20231229,
			StartingCapital:         100000,
			Universe:                []string{"AAPL.US"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*BacktestConfig)
	}{
		{"lookback off preset", func(c *BacktestConfig) { c.LookbackMonths = 24 }},
		{"consistency off preset", func(c *BacktestConfig) { c.ConsistencyWindowMonths = 2 }},
		{"rebalance off preset", func(c *BacktestConfig) { c.RebalancePeriodMonths = 4 }},
		{"firms off preset", func(c *BacktestConfig) { c.FirmsHeld = 75 }},
		{"reversed range", func(c *BacktestConfig) { c.StartDate, c.EndDate = c.EndDate, c.StartDate }},
		{"zero capital", func(c *BacktestConfig) { c.StartingCapital = 0 }},
		{"negative slippage", func(c *BacktestConfig) { c.SlippageFactor = -0.01 }},
		{"empty universe", func(c *BacktestConfig) { c.Universe = nil }},
		{"bad gap policy", func(c *BacktestConfig) { c.PriceGapPolicy = "interpolate" }},
	}
	for _, c := range cases {
		cfg := base()
		c.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", c.name)
		}
	}
}
