package schedule

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"empty", "", 0},
		{"hello", "hello", 250 * time.Millisecond},
		{"ten characters", strings.Repeat("a", 10), 500 * time.Millisecond},
		{"just under cap", strings.Repeat("a", 199), 9950 * time.Millisecond},
		{"at cap", strings.Repeat("a", 200), MaxDelay},
		{"over cap", strings.Repeat("a", 250), MaxDelay},
		{"huge", strings.Repeat("a", 1<<20), MaxDelay},
		{"multibyte counts characters", "héllo", 250 * time.Millisecond},
		{"astral rune counts once", "😀", 50 * time.Millisecond},
		{"invalid utf8 byte counts once", "a\xffb", 150 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delay(tt.text); got != tt.want {
				t.Errorf("Delay(len=%d) = %v, want %v", len(tt.text), got, tt.want)
			}
		})
	}
}

func TestDelayMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for n := 0; n <= 300; n++ {
		d := Delay(strings.Repeat("x", n))
		if d < prev {
			t.Fatalf("delay decreased at length %d: %v < %v", n, d, prev)
		}
		if d > MaxDelay {
			t.Fatalf("delay %v exceeds cap at length %d", d, n)
		}
		prev = d
	}
}

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned too early after %v", elapsed)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, time.Hour); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
