package redact

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single match", "call 555-1234", "call [REDACTED]"},
		{"multiple matches", "555-1234 or 666-9876", "[REDACTED] or [REDACTED]"},
		{"no match", "hello world", "hello world"},
		{"empty", "", ""},
		{"embedded in longer digits", "1555-12345", "1[REDACTED]5"},
		{"adjacent matches", "555-1234555-1234", "[REDACTED][REDACTED]"},
		{"too short", "55-1234 and 555-123", "55-1234 and 555-123"},
		{"unicode around", "тел: 555-1234!", "тел: [REDACTED]!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"call 555-1234",
		"555-1234-5678",
		"no digits here",
		"[REDACTED] 123-4567 [REDACTED]",
	}

	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Errorf("Text not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCount(t *testing.T) {
	if got := Count("555-1234 and 666-9876"); got != 2 {
		t.Errorf("expected 2 matches, got %d", got)
	}
	if got := Count("nothing"); got != 0 {
		t.Errorf("expected 0 matches, got %d", got)
	}
}
