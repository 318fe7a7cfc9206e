package storage

import (
	"context"
	"sync"
	"time"

	"logredact/internal/models"
)

type memoryKey struct {
	tenantID string
	logID    string
}

// Memory keeps records in process memory
type Memory struct {
	mu      sync.RWMutex
	records map[memoryKey]models.ProcessedRecord
	writes  int
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[memoryKey]models.ProcessedRecord)}
}

func (m *Memory) Upsert(ctx context.Context, record *models.ProcessedRecord) error {
	start := time.Now()
	err := ctx.Err()
	if err == nil {
		m.mu.Lock()
		m.records[memoryKey{record.TenantID, record.LogID}] = *record
		m.writes++
		m.mu.Unlock()
	}
	observeWrite("memory", start, err)
	return err
}

func (m *Memory) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[memoryKey{tenantID, logID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Len returns the number of distinct records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Writes returns the number of successful upserts, duplicates included
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }
