// Package retry implements the exponential-backoff retry driver recc
// wraps around every RPC: please's own remote client relies on
// remote-apis-sdks' client.RetryTransient() for this, but recc also needs
// a one-shot "refresh credentials and retry once" rule on top for
// UNAUTHENTICATED responses, which the SDK's retrier doesn't know about.
// Grounded on the retry policy shape of hashicorp/go-retryablehttp (also
// in recc's dependency graph, for auth token requests) generalized from
// HTTP status codes to gRPC codes.
package retry

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/remoteexec/recc/internal/auth"
)

// Policy configures the backoff schedule: up to Limit+1 attempts, with
// delay Base*2^n between attempts n and n+1.
type Policy struct {
	Limit int
	Base  time.Duration
}

// DefaultPolicy matches reccconfig's hardcoded defaults: two retries
// (three attempts total) with a 100ms base delay.
var DefaultPolicy = Policy{Limit: 2, Base: 100 * time.Millisecond}

// Do runs fn, retrying transient gRPC failures per policy. If fn fails
// with UNAUTHENTICATED, Do calls session.Refresh once and retries
// immediately without consuming a backoff slot, on the theory that a
// freshly refreshed token is likely to succeed outright.
func Do(ctx context.Context, policy Policy, session auth.Session, fn func(ctx context.Context) error) error {
	refreshed := false
	var lastErr error
	for attempt := 0; attempt <= policy.Limit; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		code := status.Code(err)
		if code == codes.Unauthenticated && !refreshed && session != nil {
			refreshed = true
			if rerr := session.Refresh(ctx); rerr == nil {
				attempt--
				continue
			}
		}
		if !isTransient(code) {
			return err
		}
		if attempt == policy.Limit {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(policy, attempt)):
		}
	}
	return fmt.Errorf("retry limit exceeded. Last gRPC error was %s: %s", status.Code(lastErr), status.Convert(lastErr).Message())
}

func isTransient(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal:
		return true
	default:
		return false
	}
}

// backoff returns the deterministic delay between attempts n and n+1:
// Base * 2^n, per spec's literal formula (no jitter).
func backoff(policy Policy, attempt int) time.Duration {
	return policy.Base << attempt
}
