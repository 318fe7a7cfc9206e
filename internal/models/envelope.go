package models

import (
	"errors"
	"time"
)

// Source identifies which acceptance path produced an envelope
type Source string

const (
	SourceJSONUpload Source = "json_upload"
	SourceTextUpload Source = "text_upload"
)

// IsValid checks if the source is one of the known acceptance paths
func (s Source) IsValid() bool {
	switch s {
	case SourceJSONUpload, SourceTextUpload:
		return true
	default:
		return false
	}
}

// Envelope is the canonical message moving through the buffer
type Envelope struct {
	// Owning tenant, always supplied by the caller
	TenantID string `json:"tenant_id"`

	// Unique per submission
	LogID string `json:"log_id"`

	// Raw content to be processed
	Text string `json:"text"`

	// Acceptance path that produced the envelope
	Source Source `json:"source"`

	// Set once at normalization time
	IngestedAt time.Time `json:"ingested_at"`
}

// Envelope validation errors
var (
	ErrEmptyTenantID = errors.New("tenant_id cannot be empty")
	ErrEmptyLogID    = errors.New("log_id cannot be empty")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrInvalidSource = errors.New("invalid source")
)

// NewEnvelope creates an envelope stamped with the current UTC time
func NewEnvelope(tenantID, logID, text string, source Source) *Envelope {
	return &Envelope{
		TenantID:   tenantID,
		LogID:      logID,
		Text:       text,
		Source:     source,
		IngestedAt: time.Now().UTC(),
	}
}

// Validate checks the envelope carries everything a worker needs
func (e *Envelope) Validate() error {
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}

	if e.LogID == "" {
		return ErrEmptyLogID
	}

	if e.Text == "" {
		return ErrEmptyText
	}

	if !e.Source.IsValid() {
		return ErrInvalidSource
	}

	return nil
}
