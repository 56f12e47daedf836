package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"energywatch/internal/meterapi"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Select: func(error) Backoff { return Flat(0) }}
	err := Do(context.Background(), policy, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("permanent")
	policy := Policy{MaxAttempts: 3, Select: func(error) Backoff { return Flat(0) }}
	err := Do(context.Background(), policy, func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoNilBackoffStops(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Select: func(error) Backoff { return nil }}
	_ = Do(context.Background(), policy, func(context.Context) error {
		calls++
		return errors.New("fatal")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want no retries when Select returns nil", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := Policy{MaxAttempts: 3, Select: func(error) Backoff { return Flat(time.Hour) }}
	err := Do(ctx, policy, func(context.Context) error { return errors.New("transient") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultSelectsBackoffByClass(t *testing.T) {
	policy := Default()

	unavailable := &meterapi.TransportError{StatusCode: 503}
	if _, ok := policy.Select(unavailable).(Exponential); !ok {
		t.Error("503 should back off exponentially")
	}
	if _, ok := policy.Select(errors.New("other")).(Flat); !ok {
		t.Error("other failures should retry with a flat delay")
	}
}

func TestExponentialDelayCapped(t *testing.T) {
	e := Exponential{Base: time.Second, Cap: 4 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		d := e.Delay(attempt)
		if d > 5*time.Second { // cap plus max jitter
			t.Fatalf("Delay(%d) = %v exceeds cap", attempt, d)
		}
	}
	if e.Delay(1) < time.Second {
		t.Fatal("first delay below base")
	}
}
