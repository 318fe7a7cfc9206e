package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"logredact/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_logs (
	tenant_id          TEXT    NOT NULL,
	log_id             TEXT    NOT NULL,
	source             TEXT    NOT NULL,
	original_text      TEXT    NOT NULL,
	modified_text      TEXT    NOT NULL,
	ingested_at        TEXT    NOT NULL,
	processed_at       TEXT    NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, log_id)
);`

const sqliteUpsert = `INSERT INTO processed_logs (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (tenant_id, log_id) DO UPDATE SET
	source = excluded.source,
	original_text = excluded.original_text,
	modified_text = excluded.modified_text,
	ingested_at = excluded.ingested_at,
	processed_at = excluded.processed_at,
	processing_time_ms = excluded.processing_time_ms`

const sqliteSelect = `SELECT ` + recordColumns + ` FROM processed_logs WHERE tenant_id = ? AND log_id = ?`

// SQLite stores records in a local database file, for single-node deployments
type SQLite struct {
	db         *sql.DB
	upsertStmt *sql.Stmt
	selectStmt *sql.Stmt
}

// NewSQLite opens (and creates if needed) the database at path
func NewSQLite(path string, busyTimeout time.Duration) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	s := &SQLite{db: db}
	if s.upsertStmt, err = db.Prepare(sqliteUpsert); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	if s.selectStmt, err = db.Prepare(sqliteSelect); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare select: %w", err)
	}

	return s, nil
}

// Upsert inserts the record or overwrites the existing one
func (s *SQLite) Upsert(ctx context.Context, r *models.ProcessedRecord) error {
	start := time.Now()
	_, err := s.upsertStmt.ExecContext(ctx,
		r.TenantID, r.LogID, string(r.Source), r.Text, r.ModifiedText,
		r.IngestedAt.UTC().Format(time.RFC3339Nano),
		r.ProcessedAt.UTC().Format(time.RFC3339Nano),
		r.ProcessingTimeMS,
	)
	observeWrite("sqlite", start, err)
	if err != nil {
		return fmt.Errorf("sqlite upsert error: %w", err)
	}
	return nil
}

// Get reads one record by key
func (s *SQLite) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	r := &models.ProcessedRecord{}
	var source, ingestedAt, processedAt string
	err := s.selectStmt.QueryRowContext(ctx, tenantID, logID).Scan(
		&r.TenantID, &r.LogID, &source, &r.Text, &r.ModifiedText,
		&ingestedAt, &processedAt, &r.ProcessingTimeMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlite get error: %w", err)
	}

	r.Source = models.Source(source)
	if r.IngestedAt, err = time.Parse(time.RFC3339Nano, ingestedAt); err != nil {
		return nil, fmt.Errorf("ingested_at: %w", err)
	}
	if r.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
		return nil, fmt.Errorf("processed_at: %w", err)
	}
	return r, nil
}

// Count returns the number of stored records
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_logs`).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	s.upsertStmt.Close()
	s.selectStmt.Close()
	return s.db.Close()
}
