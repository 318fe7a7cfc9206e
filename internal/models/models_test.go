package models_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"logredact/internal/models"
)

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     models.Envelope
		wantErr error
	}{
		{
			name: "valid json upload",
			env:  models.Envelope{TenantID: "t", LogID: "l", Text: "x", Source: models.SourceJSONUpload},
		},
		{
			name: "valid text upload",
			env:  models.Envelope{TenantID: "t", LogID: "l", Text: "x", Source: models.SourceTextUpload},
		},
		{
			name:    "missing tenant",
			env:     models.Envelope{LogID: "l", Text: "x", Source: models.SourceJSONUpload},
			wantErr: models.ErrEmptyTenantID,
		},
		{
			name:    "missing log id",
			env:     models.Envelope{TenantID: "t", Text: "x", Source: models.SourceJSONUpload},
			wantErr: models.ErrEmptyLogID,
		},
		{
			name:    "missing text",
			env:     models.Envelope{TenantID: "t", LogID: "l", Source: models.SourceJSONUpload},
			wantErr: models.ErrEmptyText,
		},
		{
			name:    "unknown source",
			env:     models.Envelope{TenantID: "t", LogID: "l", Text: "x", Source: "upload"},
			wantErr: models.ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	env := models.Envelope{
		TenantID:   "acme",
		LogID:      "abc",
		Text:       "hello",
		Source:     models.SourceTextUpload,
		IngestedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"tenant_id":"acme","log_id":"abc","text":"hello","source":"text_upload","ingested_at":"2024-01-15T10:30:00Z"}`
	if string(data) != want {
		t.Errorf("unexpected wire format:\n got %s\nwant %s", data, want)
	}
}

func TestNewProcessedRecord(t *testing.T) {
	env := models.NewEnvelope("acme", "abc", "call 555-1234", models.SourceJSONUpload)
	processedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	rec := models.NewProcessedRecord(env, "call [REDACTED]", 650*time.Millisecond, processedAt)

	if tenant, log := rec.Key(); tenant != "acme" || log != "abc" {
		t.Errorf("unexpected key %s/%s", tenant, log)
	}
	if rec.Text != "call 555-1234" || rec.ModifiedText != "call [REDACTED]" {
		t.Errorf("texts not carried: %+v", rec)
	}
	if rec.ProcessingTimeMS != 650 {
		t.Errorf("expected 650ms, got %d", rec.ProcessingTimeMS)
	}
	if rec.ProcessedAt.Location() != time.UTC || !rec.ProcessedAt.Equal(processedAt) {
		t.Errorf("processed_at should be normalized to UTC: %v", rec.ProcessedAt)
	}
	if !rec.IngestedAt.Equal(env.IngestedAt) {
		t.Errorf("ingested_at not carried")
	}
}
