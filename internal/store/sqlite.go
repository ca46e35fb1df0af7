package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"quantmom/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*SQLiteStore)(nil)
var _ ParamStore = (*SQLiteStore)(nil)
var _ RateStore = (*SQLiteStore)(nil)
var _ CalendarSource = (*SQLiteStore)(nil)

// SQLiteStore implements BarStore, ParamStore, RateStore, and CalendarSource
// backed by a SQLite database. Each instrument's bars live in their own
// table named by domain.SeriesKey; parameter records and risk-free quotes
// live in shared tables keyed by (symbol, date) and date respectively.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration for the shared tables, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series (
			symbol     TEXT PRIMARY KEY,
			table_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parameters (
			symbol       TEXT    NOT NULL,
			date         INTEGER NOT NULL,
			momentum     REAL    NOT NULL,
			pct_positive REAL    NOT NULL,
			pct_negative REAL    NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS risk_free (
			date INTEGER PRIMARY KEY,
			rate REAL NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// ensureBarTable creates the instrument's bar table if needed and records
// the symbol in the series registry.
func (s *SQLiteStore) ensureBarTable(ctx context.Context, symbol string) (string, error) {
	table := domain.SeriesKey(symbol)
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		date   INTEGER PRIMARY KEY,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL
	)`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("creating bar table %s: %w", table, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO series (symbol, table_name) VALUES (?, ?)`, symbol, table)
	if err != nil {
		return "", fmt.Errorf("registering series %s: %w", symbol, err)
	}
	return table, nil
}

// WriteBars persists a batch of bars for one instrument, replacing any bar
// already stored for the same date.
func (s *SQLiteStore) WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	table, err := s.ensureBarTable(ctx, symbol)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %q (date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?)`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, int(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("inserting bar %s/%v: %w", symbol, b.Date, err)
		}
	}
	return tx.Commit()
}

// ReadBars returns the instrument's bars within [start, end] in date order.
// An instrument with no stored series yields an empty slice, not an error.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end domain.DateInt) ([]domain.Bar, error) {
	table, ok, err := s.lookupSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT date, open, high, low, close, volume FROM %q WHERE date >= ? AND date <= ? ORDER BY date`, table),
		int(start), int(end))
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		b := domain.Bar{Symbol: symbol}
		var date int
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = domain.DateInt(date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns all instruments registered in the series table.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM series ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) lookupSeries(ctx context.Context, symbol string) (string, bool, error) {
	var table string
	err := s.db.QueryRowContext(ctx,
		`SELECT table_name FROM series WHERE symbol = ?`, symbol).Scan(&table)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return table, true, nil
}

// ---------------------------------------------------------------------------
// ParamStore implementation
// ---------------------------------------------------------------------------

// ReplaceParameters atomically replaces the instrument's full parameter
// series; there is no incremental patch format.
func (s *SQLiteStore) ReplaceParameters(ctx context.Context, symbol string, records []domain.ParameterRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parameters WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("clearing parameters for %s: %w", symbol, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parameters (symbol, date, momentum, pct_positive, pct_negative) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, symbol, int(r.Date), r.Momentum, r.PctPositive, r.PctNegative); err != nil {
			return fmt.Errorf("inserting parameters %s/%v: %w", symbol, r.Date, err)
		}
	}
	return tx.Commit()
}

// ReadParameters returns the instrument's records within [start, end] in
// date order.
func (s *SQLiteStore) ReadParameters(ctx context.Context, symbol string, start, end domain.DateInt) ([]domain.ParameterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, momentum, pct_positive, pct_negative FROM parameters
		 WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date`,
		symbol, int(start), int(end))
	if err != nil {
		return nil, fmt.Errorf("reading parameters for %s: %w", symbol, err)
	}
	defer rows.Close()

	var records []domain.ParameterRecord
	for rows.Next() {
		r := domain.ParameterRecord{Symbol: symbol}
		var date int
		if err := rows.Scan(&date, &r.Momentum, &r.PctPositive, &r.PctNegative); err != nil {
			return nil, err
		}
		r.Date = domain.DateInt(date)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// RateStore implementation
// ---------------------------------------------------------------------------

// WriteRates upserts a batch of risk-free quotes.
func (s *SQLiteStore) WriteRates(ctx context.Context, quotes []domain.RateQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO risk_free (date, rate) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, int(q.Date), q.Rate); err != nil {
			return fmt.Errorf("inserting rate %v: %w", q.Date, err)
		}
	}
	return tx.Commit()
}

// ReadRates returns risk-free quotes within [start, end] in date order.
func (s *SQLiteStore) ReadRates(ctx context.Context, start, end domain.DateInt) ([]domain.RateQuote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, rate FROM risk_free WHERE date >= ? AND date <= ? ORDER BY date`,
		int(start), int(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []domain.RateQuote
	for rows.Next() {
		var q domain.RateQuote
		var date int
		if err := rows.Scan(&date, &q.Rate); err != nil {
			return nil, err
		}
		q.Date = domain.DateInt(date)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// ---------------------------------------------------------------------------
// CalendarSource implementation
// ---------------------------------------------------------------------------

// TradingCalendar returns the reference instrument's bar dates within
// [start, end]. A reference instrument with no stored series is an error:
// the calendar is load-bearing for every simulation.
func (s *SQLiteStore) TradingCalendar(ctx context.Context, refSymbol string, start, end domain.DateInt) ([]domain.DateInt, error) {
	table, ok, err := s.lookupSeries(ctx, refSymbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("reference instrument %s has no stored series", refSymbol)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT date FROM %q WHERE date >= ? AND date <= ? ORDER BY date`, table),
		int(start), int(end))
	if err != nil {
		return nil, fmt.Errorf("reading calendar from %s: %w", refSymbol, err)
	}
	defer rows.Close()

	var dates []domain.DateInt
	for rows.Next() {
		var date int
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, domain.DateInt(date))
	}
	return dates, rows.Err()
}
