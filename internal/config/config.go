// Package config loads the YAML configuration for the quantmom platform
// and applies environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantmom/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the quantmom platform.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls data gathering behaviour.
type GatherConfig struct {
	StartDate       string `yaml:"start_date"` // YYYY-MM-DD
	BatchSize       int    `yaml:"batch_size"`
	MaxWorkers      int    `yaml:"max_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	RiskFreeCSV     string `yaml:"risk_free_csv"`
}

// BacktestConfig defines one walk-forward simulation: the strategy preset,
// the simulated date range, capital, and the instrument universe.
type BacktestConfig struct {
	LookbackMonths          int `yaml:"lookback_months"`
	ConsistencyWindowMonths int `yaml:"consistency_window_months"`
	RebalancePeriodMonths   int `yaml:"rebalance_period_months"`
	FirmsHeld               int `yaml:"firms_held"`

	StartDate       domain.DateInt `yaml:"start_date"` // YYYYMMDD
	EndDate         domain.DateInt `yaml:"end_date"`   // YYYYMMDD
	StartingCapital float64        `yaml:"starting_capital"`
	SlippageFactor  float64        `yaml:"slippage_factor"`

	Universe        []string `yaml:"universe"`
	ReferenceSymbol string   `yaml:"reference_symbol"`

	// PriceGapPolicy selects the mark-to-market behaviour when a held
	// instrument has no price on a date: "carry" reuses the cost basis,
	// "abort" stops the run.
	PriceGapPolicy string `yaml:"price_gap_policy"`

	MaxWorkers int `yaml:"max_workers"` // parameter precompute parallelism
}

// ---------------------------------------------------------------------------
// Presets
// ---------------------------------------------------------------------------

// The strategy parameters are restricted to an enumerated set of presets;
// anything outside these values is a configuration error.
var (
	LookbackPresets    = []int{12, 36, 60}
	ConsistencyPresets = []int{1, 3, 6, 9, 12}
	RebalancePresets   = []int{1, 3, 6, 9, 12}
	FirmsHeldPresets   = []int{25, 50, 100, 200}
)

func inPresets(v int, presets []int) bool {
	for _, p := range presets {
		if v == p {
			return true
		}
	}
	return false
}

// Validate checks the backtest section against the preset enumerations and
// basic range sanity.
func (c *BacktestConfig) Validate() error {
	if !inPresets(c.LookbackMonths, LookbackPresets) {
		return fmt.Errorf("lookback_months %d not in presets %v", c.LookbackMonths, LookbackPresets)
	}
	if !inPresets(c.ConsistencyWindowMonths, ConsistencyPresets) {
		return fmt.Errorf("consistency_window_months %d not in presets %v", c.ConsistencyWindowMonths, ConsistencyPresets)
	}
	if !inPresets(c.RebalancePeriodMonths, RebalancePresets) {
		return fmt.Errorf("rebalance_period_months %d not in presets %v", c.RebalancePeriodMonths, RebalancePresets)
	}
	if !inPresets(c.FirmsHeld, FirmsHeldPresets) {
		return fmt.Errorf("firms_held %d not in presets %v", c.FirmsHeld, FirmsHeldPresets)
	}
	if !c.StartDate.Valid() || !c.EndDate.Valid() {
		return fmt.Errorf("invalid date range %v..%v", c.StartDate, c.EndDate)
	}
	if c.EndDate < c.StartDate {
		return fmt.Errorf("end_date %v precedes start_date %v", c.EndDate, c.StartDate)
	}
	if c.StartingCapital <= 0 {
		return fmt.Errorf("starting_capital must be positive, got %v", c.StartingCapital)
	}
	if c.SlippageFactor < 0 {
		return fmt.Errorf("slippage_factor must not be negative, got %v", c.SlippageFactor)
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("universe is empty")
	}
	switch c.PriceGapPolicy {
	case "", "carry", "abort":
	default:
		return fmt.Errorf("price_gap_policy %q not one of carry, abort", c.PriceGapPolicy)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets environment variables win over file values for the
// settings that commonly differ between machines and CI.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
