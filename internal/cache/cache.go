// Package cache persists per-ticker enriched bar tables in a SQLite file,
// keyed by (ticker, start, end), so a repeated backtest run over the same
// window skips re-fetching and re-annotating a ticker (spec §4.7 "Bulk
// load", §6 "Persisted state"). A SQLite row write is atomic by
// transaction, standing in for the file-based "write to temp then
// rename" discipline spec.md describes for a loose-file cache.
package cache

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kosix/stagebacktest/internal/numerics"
)

const dateLayout = "2006-01-02"

// Cache wraps a SQLite-backed store of gob-encoded enriched tables.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and ensures
// the schema exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: Open(%s): %w", path, err)
	}
	c := &Cache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS enriched_tables (
			ticker     TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			payload    BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (ticker, start_date, end_date)
		)
	`)
	if err != nil {
		return fmt.Errorf("cache: initSchema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached enriched table for (ticker, start, end), and
// false if absent. A read failure is demoted to a cache miss (spec §7
// "Cache read failure: demoted to a cache miss"), never returned as an
// error.
func (c *Cache) Get(ticker string, start, end time.Time) (*numerics.EnrichedTable, bool) {
	row := c.db.QueryRow(
		`SELECT payload FROM enriched_tables WHERE ticker = ? AND start_date = ? AND end_date = ?`,
		ticker, start.Format(dateLayout), end.Format(dateLayout),
	)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, false
	}
	var table numerics.EnrichedTable
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&table); err != nil {
		return nil, false
	}
	return &table, true
}

// Put writes (or replaces) the cached entry for (ticker, start, end).
func (c *Cache) Put(ticker string, start, end time.Time, table *numerics.EnrichedTable) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(table); err != nil {
		return fmt.Errorf("cache: Put(%s): encode: %w", ticker, err)
	}
	_, err := c.db.Exec(
		`INSERT INTO enriched_tables (ticker, start_date, end_date, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ticker, start_date, end_date) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		ticker, start.Format(dateLayout), end.Format(dateLayout), buf.Bytes(), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cache: Put(%s): %w", ticker, err)
	}
	return nil
}

// Clear removes every cached entry. Used by `cmd/backtest cache clear`.
func (c *Cache) Clear() error {
	_, err := c.db.Exec(`DELETE FROM enriched_tables`)
	if err != nil {
		return fmt.Errorf("cache: Clear: %w", err)
	}
	return nil
}

// Summary is the aggregate view used by `cmd/backtest cache info`.
type Summary struct {
	EntryCount int
	Tickers    int
}

// Info reports the cache's current size.
func (c *Cache) Info() (Summary, error) {
	var entries, tickers int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM enriched_tables`).Scan(&entries); err != nil {
		return Summary{}, fmt.Errorf("cache: Info: %w", err)
	}
	if err := c.db.QueryRow(`SELECT COUNT(DISTINCT ticker) FROM enriched_tables`).Scan(&tickers); err != nil {
		return Summary{}, fmt.Errorf("cache: Info: %w", err)
	}
	return Summary{EntryCount: entries, Tickers: tickers}, nil
}
