package marketdata

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"quantrisk/internal/engine"
	"quantrisk/internal/logger"

	_ "modernc.org/sqlite"
)

// priceTTL is how long cached history counts as fresh. Daily closes
// change once per trading day, so a day is the natural refresh cadence.
const priceTTL = 24 * time.Hour

// Store is a SQLite-backed price history cache.
type Store struct {
	sql *sql.DB
}

// OpenStore opens (or creates) the price cache database at path and
// runs migrations.
func OpenStore(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open price store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping price store: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate price store: %w", err)
	}
	logger.Success("STORE", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS prices (
				symbol TEXT NOT NULL,
				date   TEXT NOT NULL,
				close  REAL NOT NULL,
				PRIMARY KEY (symbol, date)
			);

			CREATE TABLE IF NOT EXISTS prices_meta (
				symbol     TEXT PRIMARY KEY,
				updated_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("STORE", "Applied migration v1")
	}
	return nil
}

// GetPrices retrieves cached history for a symbol, limited to the last
// lookbackDays+1 points. Returns nil, false on a miss or when the cache
// entry is older than 24 hours.
func (s *Store) GetPrices(symbol string, lookbackDays int) (engine.PriceSeries, bool) {
	var updatedAt string
	err := s.sql.QueryRow("SELECT updated_at FROM prices_meta WHERE symbol=?", symbol).Scan(&updatedAt)
	if err != nil {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || time.Since(t) > priceTTL {
		return nil, false
	}

	rows, err := s.sql.Query("SELECT date, close FROM prices WHERE symbol=? ORDER BY date", symbol)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var series engine.PriceSeries
	for rows.Next() {
		var dateStr string
		var close float64
		if err := rows.Scan(&dateStr, &close); err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		series = append(series, engine.PricePoint{Date: date, Close: close})
	}
	if len(series) == 0 {
		return nil, false
	}
	if lookbackDays > 0 && len(series) > lookbackDays+1 {
		series = series[len(series)-lookbackDays-1:]
	}
	return series, true
}

// SetPrices stores a symbol's history, replacing any previous rows.
// Failures are logged and swallowed; the cache is best-effort.
func (s *Store) SetPrices(symbol string, series engine.PriceSeries) {
	tx, err := s.sql.Begin()
	if err != nil {
		log.Printf("[STORE] SetPrices %s: begin: %v", symbol, err)
		return
	}
	defer tx.Rollback()

	tx.Exec("DELETE FROM prices WHERE symbol=?", symbol)

	stmt, err := tx.Prepare("INSERT INTO prices (symbol, date, close) VALUES (?,?,?)")
	if err != nil {
		log.Printf("[STORE] SetPrices %s: prepare: %v", symbol, err)
		return
	}
	defer stmt.Close()

	for _, p := range series {
		stmt.Exec(symbol, p.Date.Format("2006-01-02"), p.Close)
	}

	tx.Exec(
		"INSERT OR REPLACE INTO prices_meta (symbol, updated_at) VALUES (?,?)",
		symbol, time.Now().UTC().Format(time.RFC3339),
	)
	tx.Commit()
}

// Cleanup removes symbols whose cache entry has not been refreshed
// within maxAge, plus any orphaned price rows. Called on startup to
// bound database growth.
func (s *Store) Cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)

	res, err := s.sql.Exec("DELETE FROM prices_meta WHERE updated_at < ?", cutoff)
	if err != nil {
		log.Printf("[STORE] Cleanup: meta delete error: %v", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[STORE] Cleanup: removed %d stale symbols", n)
	}

	res, err = s.sql.Exec("DELETE FROM prices WHERE symbol NOT IN (SELECT symbol FROM prices_meta)")
	if err != nil {
		log.Printf("[STORE] Cleanup: orphan delete error: %v", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[STORE] Cleanup: removed %d orphaned price rows", n)
	}
}
