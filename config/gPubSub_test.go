package config

import (
	"context"
	"testing"
	"time"
)

func TestWaitBeforeRetryStopsWhenContextExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := waitBeforeRetry(ctx, 30*time.Second); err == nil {
		t.Fatalf("expected context error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("waited %s despite cancelled context", elapsed)
	}
}

func TestPubsubRetryBackoffIsCapped(t *testing.T) {
	if got := pubsubRetryBackoff(1); got != 2*time.Second {
		t.Fatalf("attempt 1: expected 2s, got %s", got)
	}
	for _, attempt := range []int{5, 10, 100} {
		if got := pubsubRetryBackoff(attempt); got != 30*time.Second {
			t.Fatalf("attempt %d: expected 30s cap, got %s", attempt, got)
		}
	}
}
