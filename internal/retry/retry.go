// Package retry provides a small bounded-backoff policy for transient
// external failures. Callers classify errors themselves; the policy only
// schedules attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Outcome is the tagged result of a retried operation.
type Outcome string

const (
	// Succeeded means some attempt returned nil.
	Succeeded Outcome = "succeeded"
	// Exhausted means every allowed attempt failed with a retryable error.
	Exhausted Outcome = "exhausted"
	// Aborted means an attempt failed with a non-retryable error or the
	// context was cancelled.
	Aborted Outcome = "aborted"
)

type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error
}

func (p Policy) normalized() Policy {
	out := p
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 1
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = 500 * time.Millisecond
	}
	if out.Multiplier < 1 {
		out.Multiplier = 2
	}
	return out
}

// Do runs fn up to MaxAttempts times. retryable decides whether an error
// is worth another attempt; a false verdict aborts immediately. Delay
// grows by Multiplier between attempts and waiting respects ctx.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) Result {
	policy := p.normalized()
	delay := policy.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: Aborted, Attempts: attempt - 1, Err: err}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return Result{Outcome: Succeeded, Attempts: attempt}
		}
		if retryable != nil && !retryable(lastErr) {
			return Result{Outcome: Aborted, Attempts: attempt, Err: lastErr}
		}
		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Outcome: Aborted, Attempts: attempt, Err: fmt.Errorf("%w (after %v)", ctx.Err(), lastErr)}
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}

	return Result{Outcome: Exhausted, Attempts: policy.MaxAttempts, Err: lastErr}
}
