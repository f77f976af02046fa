package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	res := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, func(error) bool { return true })

	if res.Outcome != Succeeded || res.Attempts != 1 || calls != 1 {
		t.Fatalf("unexpected result %+v calls=%d", res, calls)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	res := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, func(error) bool { return true })

	if res.Outcome != Succeeded || res.Attempts != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	res := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, func(error) bool { return true })

	if res.Outcome != Exhausted || res.Attempts != 3 || calls != 3 {
		t.Fatalf("unexpected result %+v calls=%d", res, calls)
	}
	if !errors.Is(res.Err, errTransient) {
		t.Fatalf("expected last error to be preserved, got %v", res.Err)
	}
}

func TestDoAbortsOnTerminalError(t *testing.T) {
	t.Parallel()

	terminal := errors.New("bad request")
	calls := 0
	res := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return terminal
	}, func(err error) bool { return !errors.Is(err, terminal) })

	if res.Outcome != Aborted || calls != 1 {
		t.Fatalf("expected single aborted attempt, got %+v calls=%d", res, calls)
	}
}

func TestDoAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := fastPolicy(3).Do(ctx, func(context.Context) error {
		t.Fatal("fn must not run with cancelled context")
		return nil
	}, nil)

	if res.Outcome != Aborted || res.Attempts != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNormalizedDefaults(t *testing.T) {
	t.Parallel()

	p := Policy{}.normalized()
	if p.MaxAttempts != 1 || p.BaseDelay != 500*time.Millisecond || p.Multiplier != 2 {
		t.Fatalf("unexpected defaults %+v", p)
	}
}
