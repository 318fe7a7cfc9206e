package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"logredact/internal/models"
)

func testRecord(tenantID, logID string, delayMS int64) *models.ProcessedRecord {
	env := &models.Envelope{
		TenantID:   tenantID,
		LogID:      logID,
		Text:       "call 555-1234",
		Source:     models.SourceJSONUpload,
		IngestedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	return models.NewProcessedRecord(env, "call [REDACTED]",
		time.Duration(delayMS)*time.Millisecond,
		time.Date(2024, 1, 15, 10, 30, 1, 0, time.UTC).Add(time.Duration(delayMS)*time.Millisecond))
}

// exerciseStore runs the shared Store contract against any backend
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "t1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := testRecord("t1", "log-1", 650)
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, "t1", "log-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ModifiedText != "call [REDACTED]" || got.Text != "call 555-1234" {
		t.Errorf("text fields not persisted: %+v", got)
	}
	if got.Source != models.SourceJSONUpload || got.ProcessingTimeMS != 650 {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.IngestedAt.Equal(first.IngestedAt) || !got.ProcessedAt.Equal(first.ProcessedAt) {
		t.Errorf("timestamps not persisted: %v %v", got.IngestedAt, got.ProcessedAt)
	}

	// the same key overwrites
	second := testRecord("t1", "log-1", 100)
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = s.Get(ctx, "t1", "log-1")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if got.ProcessingTimeMS != 100 || !got.ProcessedAt.Equal(second.ProcessedAt) {
		t.Errorf("record not overwritten: %+v", got)
	}

	// the same log id under another tenant is a different record
	if err := s.Upsert(ctx, testRecord("t2", "log-1", 5)); err != nil {
		t.Fatalf("upsert other tenant: %v", err)
	}
	got, err = s.Get(ctx, "t1", "log-1")
	if err != nil || got.ProcessingTimeMS != 100 {
		t.Errorf("tenant isolation broken: %+v, %v", got, err)
	}
}

// exerciseNULText stores text holding a NUL byte, as a text/plain body may
func exerciseNULText(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	r := testRecord("t-nul", "log-nul", 150)
	r.Text = "a\x00b 555-1234"
	r.ModifiedText = "a\x00b [REDACTED]"
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatalf("upsert with NUL byte: %v", err)
	}

	got, err := s.Get(ctx, "t-nul", "log-nul")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != r.Text || got.ModifiedText != r.ModifiedText {
		t.Errorf("NUL text not preserved: %q / %q", got.Text, got.ModifiedText)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)

	if s.Len() != 2 {
		t.Errorf("expected 2 distinct records, got %d", s.Len())
	}
	if s.Writes() != 3 {
		t.Errorf("expected 3 writes, got %d", s.Writes())
	}

	exerciseNULText(t, s)
}

func TestMemoryStoreCancelled(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Upsert(ctx, testRecord("t1", "log-1", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("cancelled write must not be stored")
	}
}
