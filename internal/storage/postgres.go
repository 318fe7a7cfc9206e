package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"logredact/internal/logger"
	"logredact/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const recordColumns = `tenant_id, log_id, source, original_text, modified_text,
	ingested_at, processed_at, processing_time_ms`

const upsertSQL = `INSERT INTO processed_logs (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, log_id) DO UPDATE SET
	source = EXCLUDED.source,
	original_text = EXCLUDED.original_text,
	modified_text = EXCLUDED.modified_text,
	ingested_at = EXCLUDED.ingested_at,
	processed_at = EXCLUDED.processed_at,
	processing_time_ms = EXCLUDED.processing_time_ms`

const selectSQL = `SELECT ` + recordColumns + ` FROM processed_logs WHERE tenant_id = $1 AND log_id = $2`

// Postgres stores records in the processed_logs table
type Postgres struct {
	pool *pgxpool.Pool
}

// PostgresOptions tunes the connection pool
type PostgresOptions struct {
	MaxConns int32
	// Apply embedded migrations before use
	Migrate bool
}

// NewPostgres connects to the database, optionally migrating it first
func NewPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}

	if opts.Migrate {
		if err := MigratePostgres(dsn); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// MigratePostgres applies the embedded migrations
func MigratePostgres(dsn string) error {
	log := logger.WithComponent("storage")

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	url, err := migrationURL(dsn)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("postgres migrations applied")
	return nil
}

// migrationURL rewrites a postgres URL for the pgx5 migrate driver
func migrationURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("migrations need a postgres:// URL DSN")
}

// Upsert inserts the record or overwrites the existing one
func (p *Postgres) Upsert(ctx context.Context, r *models.ProcessedRecord) error {
	start := time.Now()
	_, err := p.pool.Exec(ctx, upsertSQL,
		r.TenantID, r.LogID, string(r.Source), []byte(r.Text), []byte(r.ModifiedText),
		r.IngestedAt, r.ProcessedAt, r.ProcessingTimeMS,
	)
	observeWrite("postgres", start, err)
	if err != nil {
		return fmt.Errorf("postgres upsert error: %w", err)
	}
	return nil
}

// Get reads one record by key
func (p *Postgres) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	r := &models.ProcessedRecord{}
	var source string
	var text, modified []byte
	err := p.pool.QueryRow(ctx, selectSQL, tenantID, logID).Scan(
		&r.TenantID, &r.LogID, &source, &text, &modified,
		&r.IngestedAt, &r.ProcessedAt, &r.ProcessingTimeMS,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres get error: %w", err)
	}
	r.Source = models.Source(source)
	r.Text, r.ModifiedText = string(text), string(modified)
	r.IngestedAt = r.IngestedAt.UTC()
	r.ProcessedAt = r.ProcessedAt.UTC()
	return r, nil
}

// Ping checks database connectivity
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
