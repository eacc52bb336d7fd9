package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scanbay/internal/ratelimit"
)

func TestGateBoundsConcurrency(t *testing.T) {
	gate := ratelimit.NewGate(2)
	ctx := context.Background()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			now := atomic.AddInt32(&active, 1)
			for {
				current := atomic.LoadInt32(&peak)
				if now <= current || atomic.CompareAndSwapInt32(&peak, current, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			gate.Release()
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent holders, saw %d", peak)
	}
	if gate.Active() != 0 || gate.Waiting() != 0 {
		t.Fatalf("expected idle gate, got active=%d waiting=%d", gate.Active(), gate.Waiting())
	}
}

func TestGateAcquireHonorsCancellation(t *testing.T) {
	gate := ratelimit.NewGate(1)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gate.Acquire(ctx)
	}()

	for gate.Waiting() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe cancellation")
	}

	gate.Release()
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("slot lost after cancelled waiter: %v", err)
	}
	gate.Release()
}

func TestGateWakesWaitersInOrder(t *testing.T) {
	gate := ratelimit.NewGate(1)
	ctx := context.Background()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	order := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			if err := gate.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			order <- i
			gate.Release()
		}()
		for gate.Waiting() != i+1 {
			time.Sleep(time.Millisecond)
		}
	}

	gate.Release()
	for want := 0; want < 3; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("expected waiter %d to run, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never ran", want)
		}
	}
}

func TestLimiterRetriesWithBackoff(t *testing.T) {
	var slept []time.Duration
	limiter := ratelimit.NewLimiter(1,
		ratelimit.Policy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second},
		ratelimit.WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)

	calls := 0
	err := limiter.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient %d", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	if slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Fatalf("expected exponential delays, got %v", slept)
	}
}

func TestPolicyDelayStaysWithinJitterBand(t *testing.T) {
	policy := ratelimit.Policy{BaseDelay: time.Second, MaxDelay: 8 * time.Second, Jitter: 0.25}

	for i := 0; i < 100; i++ {
		if d := policy.Delay(1); d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("first retry delay %v outside jitter band", d)
		}
		// Attempt 5 would double past MaxDelay; jitter applies to the cap.
		if d := policy.Delay(5); d < 6*time.Second || d > 10*time.Second {
			t.Fatalf("capped delay %v outside jitter band", d)
		}
	}
}

func TestLimiterStopsOnNonRetryable(t *testing.T) {
	limiter := ratelimit.NewLimiter(1,
		ratelimit.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	calls := 0
	err := limiter.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("bad request: %w", ratelimit.ErrNonRetryable)
	})
	if !errors.Is(err, ratelimit.ErrNonRetryable) {
		t.Fatalf("expected non-retryable error surfaced, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestLimiterExhaustsAttempts(t *testing.T) {
	limiter := ratelimit.NewLimiter(1,
		ratelimit.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	sentinel := errors.New("still failing")
	calls := 0
	err := limiter.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected underlying error preserved, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
