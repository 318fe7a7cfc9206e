package models

import (
	"time"
)

// ProcessedRecord is the persisted result of processing one envelope
type ProcessedRecord struct {
	TenantID   string    `json:"tenant_id"`
	LogID      string    `json:"log_id"`
	Source     Source    `json:"source"`
	Text       string    `json:"original_text"`
	IngestedAt time.Time `json:"ingested_at"`

	// Text with every sensitive substring replaced by the redaction marker
	ModifiedText string `json:"modified_text"`

	// Set when persistence is attempted
	ProcessedAt time.Time `json:"processed_at"`

	// The artificial delay actually applied
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

// NewProcessedRecord assembles a record from its envelope and the processing outcome
func NewProcessedRecord(env *Envelope, modified string, delay time.Duration, processedAt time.Time) *ProcessedRecord {
	return &ProcessedRecord{
		TenantID:         env.TenantID,
		LogID:            env.LogID,
		Source:           env.Source,
		Text:             env.Text,
		IngestedAt:       env.IngestedAt,
		ModifiedText:     modified,
		ProcessedAt:      processedAt.UTC(),
		ProcessingTimeMS: delay.Milliseconds(),
	}
}

// Key returns the store key of the record
func (r *ProcessedRecord) Key() (tenantID, logID string) {
	return r.TenantID, r.LogID
}
