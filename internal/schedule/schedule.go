// Package schedule computes the artificial per-record processing delay.
package schedule

import (
	"context"
	"time"
	"unicode/utf8"
)

const (
	// PerCharacter is the delay charged for every character of text
	PerCharacter = 50 * time.Millisecond

	// MaxDelay caps the delay of a single record
	MaxDelay = 10 * time.Second
)

// Delay returns min(len(text) * PerCharacter, MaxDelay), counting characters
func Delay(text string) time.Duration {
	n := utf8.RuneCountInString(text)
	if n >= int(MaxDelay/PerCharacter) {
		return MaxDelay
	}
	return time.Duration(n) * PerCharacter
}

// Sleeper suspends the caller for d
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep blocks for d, returning early with the context error if ctx ends first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
