package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffNextGrowth(t *testing.T) {
	b := Backoff{Min: 10 * time.Millisecond, Max: 80 * time.Millisecond, Factor: 2}

	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 80 * time.Millisecond},
		{10, 80 * time.Millisecond},
	}

	for _, tc := range testCases {
		if got := b.Next(tc.attempt); got != tc.expected {
			t.Fatalf("attempt %d: expected %v but got %v", tc.attempt, tc.expected, got)
		}
	}
}

func TestPolicyDoStopsAtBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: Backoff{Min: time.Millisecond, Max: time.Millisecond}}
	errBoom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPolicyDoSucceedsEarly(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: Backoff{Min: time.Millisecond, Max: time.Millisecond}}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestPolicyDoHonorsContext(t *testing.T) {
	p := Policy{MaxAttempts: 10, Backoff: Backoff{Min: 50 * time.Millisecond, Max: 50 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
