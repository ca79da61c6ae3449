package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultPolicy, nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Limit: 2, Base: 0}, nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return status.Error(codes.Unavailable, "try again")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	sentinel := status.Error(codes.InvalidArgument, "bad request")
	err := Do(context.Background(), DefaultPolicy, nil, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) && err.Error() != sentinel.Error() {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestDoGivesUpAfterRetryLimit(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Limit: 2, Base: 0}, nil, func(ctx context.Context) error {
		calls++
		return status.Error(codes.Unavailable, "down")
	})
	if err == nil || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoSleepsWithDeterministicBackoff(t *testing.T) {
	calls := 0
	var sleeps []time.Duration
	start := time.Now()
	last := start
	err := Do(context.Background(), Policy{Limit: 2, Base: 10 * time.Millisecond}, nil, func(ctx context.Context) error {
		calls++
		now := time.Now()
		if calls > 1 {
			sleeps = append(sleeps, now.Sub(last))
		}
		last = now
		if calls < 3 {
			return status.Error(codes.Unavailable, "try again")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v", sleeps)
	}
	if sleeps[0] < 10*time.Millisecond || sleeps[1] < 20*time.Millisecond {
		t.Fatalf("sleeps = %v, want >= [10ms, 20ms]", sleeps)
	}
}
