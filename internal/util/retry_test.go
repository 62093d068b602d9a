package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient error")

func TestRetryWithPolicy(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failUntil  int // attempts below this fail
		wantCalls  int
		wantErr    bool
	}{
		{"success first try", 3, 0, 1, false},
		{"success after retries", 3, 2, 3, false},
		{"all attempts exhausted", 2, 10, 3, true},
		{"zero retries", 0, 10, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithPolicy(context.Background(), tt.maxRetries, nil, func(attempt int) error {
				calls++
				if attempt < tt.failUntil {
					return errTransient
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("RetryWithPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errTransient) {
				t.Errorf("error should wrap the last failure, got %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithPolicy_UsesBackoffSchedule(t *testing.T) {
	var waits []int
	backoff := func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return time.Millisecond
	}
	err := RetryWithPolicy(context.Background(), 2, backoff, func(attempt int) error {
		return errTransient
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if len(waits) != 2 || waits[0] != 0 || waits[1] != 1 {
		t.Errorf("Expected backoff consulted for attempts [0 1], got %v", waits)
	}
}

func TestRetryWithPolicy_ContextCancelledBeforeWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithPolicy(ctx, 3, LinearBackoff(time.Hour, time.Hour), func(attempt int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithPolicy_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := RetryWithPolicy(ctx, 3, LinearBackoff(time.Hour, time.Hour), func(attempt int) error {
		return errTransient
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("wait was not interrupted, took %v", elapsed)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(2*time.Second, 6*time.Second)
	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 6 * time.Second}
	for attempt, w := range want {
		if got := b(attempt); got != w {
			t.Errorf("LinearBackoff(%d) = %v, want %v", attempt, got, w)
		}
	}
}
