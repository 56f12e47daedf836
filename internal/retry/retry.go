package retry

import (
	"context"
	"math/rand"
	"time"

	"energywatch/internal/meterapi"
)

// Backoff yields the delay before a given retry attempt (1-based).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Flat waits the same duration between attempts.
type Flat time.Duration

// Delay implements Backoff.
func (f Flat) Delay(int) time.Duration { return time.Duration(f) }

// Exponential doubles the base delay per attempt up to a cap, with jitter so
// concurrent retriers do not stampede a recovering upstream.
type Exponential struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay implements Backoff.
func (e Exponential) Delay(attempt int) time.Duration {
	d := e.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if e.Cap > 0 && d >= e.Cap {
			d = e.Cap
			break
		}
	}
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// Policy drives Do. Select maps the failure to the backoff to apply before
// the next attempt; returning nil stops retrying.
type Policy struct {
	MaxAttempts int
	Select      func(error) Backoff
}

// Default retries transient failures: an unavailable upstream backs off
// exponentially from 30 seconds, anything else gets two quick retries.
func Default() Policy {
	flat := Flat(2 * time.Second)
	exp := Exponential{Base: 30 * time.Second, Cap: 8 * time.Minute}
	return Policy{
		MaxAttempts: 5,
		Select: func(err error) Backoff {
			if meterapi.IsServiceUnavailable(err) {
				return exp
			}
			return flat
		},
	}
}

// Do runs op until it succeeds, the policy is exhausted, or the context is
// done. The last error is returned.
func Do(ctx context.Context, policy Policy, op func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= policy.MaxAttempts {
			return err
		}
		var backoff Backoff
		if policy.Select != nil {
			backoff = policy.Select(err)
		}
		if backoff == nil {
			return err
		}
		timer := time.NewTimer(backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
