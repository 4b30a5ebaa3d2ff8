// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"market-dashboard/internal/models"
)

const defaultReportLimit = 20

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Bars table for cached OHLCV data
	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, interval, timestamp)
	);

	-- Reports table for generated technical analysis
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		period TEXT NOT NULL,
		overall_signal TEXT NOT NULL,
		confluence TEXT,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval ON bars(symbol, interval, timestamp);
	CREATE INDEX IF NOT EXISTS idx_reports_symbol ON reports(symbol, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveBars upserts bars for a symbol and interval.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, interval models.BarInterval, bars models.BarSeries) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, string(interval), b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBars returns cached bars in [from, to], oldest first.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, interval models.BarInterval, from, to time.Time) (models.BarSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, string(interval), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars models.BarSeries
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// GetBarsFreshness returns the timestamp of the newest cached bar, or the
// zero time when nothing is cached.
func (s *SQLiteStore) GetBarsFreshness(ctx context.Context, symbol string, interval models.BarInterval) (time.Time, error) {
	var timestamp time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM bars WHERE symbol = ? AND interval = ?
		ORDER BY timestamp DESC LIMIT 1
	`, symbol, string(interval)).Scan(&timestamp)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get bars freshness: %w", err)
	}
	return timestamp, nil
}

// SaveReport stores a generated report.
func (s *SQLiteStore) SaveReport(ctx context.Context, record *ReportRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (id, symbol, period, overall_signal, confluence, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Symbol, record.Period, record.OverallSignal, record.Confluence,
		string(record.Payload), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// RecentReports returns reports newest first.
func (s *SQLiteStore) RecentReports(ctx context.Context, filter ReportFilter) ([]ReportRecord, error) {
	query := `SELECT id, symbol, period, overall_signal, confluence, payload, created_at FROM reports WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var r ReportRecord
		var confluence sql.NullString
		var payload string
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Period, &r.OverallSignal, &confluence, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Confluence = confluence.String
		if filter.IncludePayload && strings.TrimSpace(payload) != "" {
			r.Payload = []byte(payload)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return records, nil
}
