package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "records.db"), 0)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	s, err := NewSQLite(path, 0)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := s.Upsert(ctx, testRecord("t1", "log-1", 42)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	s, err = NewSQLite(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "t1", "log-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.ProcessingTimeMS != 42 {
		t.Errorf("unexpected record after reopen: %+v", got)
	}
}

func TestSQLiteRequiresPath(t *testing.T) {
	if _, err := NewSQLite("", 0); err == nil {
		t.Error("expected error for empty path")
	}
}
