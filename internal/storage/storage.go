package storage

import (
	"context"
	"errors"
	"time"

	"logredact/internal/metrics"
	"logredact/internal/models"
)

// ErrNotFound is returned when no record exists for a key
var ErrNotFound = errors.New("record not found")

// Store persists processed records keyed by (tenant_id, log_id).
// Upsert overwrites an existing record with the same key.
type Store interface {
	Upsert(ctx context.Context, record *models.ProcessedRecord) error
	Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error)
	Close() error
}

// observeWrite records the latency of a store write
func observeWrite(backend string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.StoreWriteDuration.WithLabelValues(backend, status).Observe(time.Since(start).Seconds())
}
