package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes the retry/backoff behavior applied to each gated call.
type Policy struct {
	// MaxAttempts bounds total tries, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; subsequent delays double.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter in [0,1] randomizes each delay by +/- Jitter*delay.
	Jitter float64
}

// DefaultPolicy matches the outbound-call defaults used across the pipeline.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.25,
	}
}

// Limiter combines a concurrency gate with a bounded retry policy.
type Limiter struct {
	gate      *Gate
	policy    Policy
	retryable func(error) bool
	sleep     func(context.Context, time.Duration) error
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithRetryable overrides which errors trigger a retry.
func WithRetryable(fn func(error) bool) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.retryable = fn
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// NewLimiter creates a limiter admitting maxConcurrency parallel calls with
// the given retry policy.
func NewLimiter(maxConcurrency int, policy Policy, opts ...Option) *Limiter {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	limiter := &Limiter{
		gate:      NewGate(maxConcurrency),
		policy:    policy,
		retryable: func(err error) bool { return err != nil && !errors.Is(err, ErrNonRetryable) },
		sleep:     sleepWithContext,
	}
	for _, opt := range opts {
		opt(limiter)
	}
	return limiter
}

// Gate exposes the underlying gate for diagnostics.
func (l *Limiter) Gate() *Gate {
	return l.gate
}

// Do runs op under the concurrency gate, retrying retryable failures with
// exponential backoff and jitter until the policy's attempt budget is spent.
func (l *Limiter) Do(ctx context.Context, op func(context.Context) error) error {
	if err := l.gate.Acquire(ctx); err != nil {
		return err
	}
	defer l.gate.Release()

	var lastErr error
	for attempt := 1; attempt <= l.policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !l.retryable(lastErr) || attempt == l.policy.MaxAttempts {
			break
		}
		if err := l.sleep(ctx, l.policy.Delay(attempt)); err != nil {
			return err
		}
	}
	if lastErr != nil && l.policy.MaxAttempts > 1 && l.retryable(lastErr) {
		return fmt.Errorf("failed after %d attempts: %w", l.policy.MaxAttempts, lastErr)
	}
	return lastErr
}

// Delay computes the jittered backoff before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread + rand.Float64()*2*spread)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
