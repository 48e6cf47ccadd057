package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	release := make(chan struct{})
	original := sleep
	sleep = func(time.Duration) { <-release }
	t.Cleanup(func() {
		close(release)
		sleep = original
	})

	t.Run("returns when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("non-positive duration does not wait", func(t *testing.T) {
		if err := WaitFor(context.Background(), 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("non-positive duration still reports a done context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := WaitFor(ctx, -time.Second); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestWaitForElapses(t *testing.T) {
	var slept time.Duration
	original := sleep
	sleep = func(d time.Duration) { slept = d }
	t.Cleanup(func() { sleep = original })

	if err := WaitFor(context.Background(), 250*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 250*time.Millisecond {
		t.Fatalf("slept %v, want 250ms", slept)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{name: "first attempt", base: 10 * time.Millisecond, max: time.Second, attempt: 0, want: 10 * time.Millisecond},
		{name: "doubles", base: 10 * time.Millisecond, max: time.Second, attempt: 3, want: 80 * time.Millisecond},
		{name: "capped", base: time.Second, max: 30 * time.Second, attempt: 6, want: 30 * time.Second},
		{name: "large attempt", base: time.Second, max: 30 * time.Second, attempt: 200, want: 30 * time.Second},
		{name: "zero base", base: 0, max: time.Second, attempt: 2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(tt.base, tt.max, tt.attempt); got != tt.want {
				t.Fatalf("Backoff() = %v, want %v", got, tt.want)
			}
		})
	}
}
