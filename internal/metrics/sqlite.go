package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps metrics in a SQLite database so they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS model_metrics (
			model_name TEXT NOT NULL,
			version TEXT NOT NULL,
			metrics TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (model_name, version)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metrics table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts the metrics for (name, version).
func (s *SQLiteStore) Save(ctx context.Context, name, version string, m Metrics) error {
	if m == nil {
		m = Metrics{}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_metrics (model_name, version, metrics, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(model_name, version) DO UPDATE SET
		 metrics = excluded.metrics,
		 updated_at = CURRENT_TIMESTAMP`,
		name, version, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// Get loads the metrics for (name, version).
func (s *SQLiteStore) Get(ctx context.Context, name, version string) (Metrics, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT metrics FROM model_metrics WHERE model_name = ? AND version = ?`,
		name, version,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Name: name, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}

	m := Metrics{}
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
