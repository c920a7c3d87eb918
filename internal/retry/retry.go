// Package retry runs an operation with bounded attempts, exponential backoff
// and a per-attempt timeout.
package retry

import (
	"context"
	"time"
)

// Defaults follow the polite client used against public ATS endpoints.
const (
	DefaultAttempts       = 3
	DefaultInitialBackoff = 600 * time.Millisecond
	DefaultMultiplier     = 2.0
	DefaultMaxBackoff     = 10 * time.Second
	DefaultAttemptTimeout = 20 * time.Second
)

// Policy describes how an operation is retried. Only errors for which
// Retryable returns true are retried.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
	Retryable      func(error) bool

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the default policy with retryable as the classifier.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Attempts:       DefaultAttempts,
		InitialBackoff: DefaultInitialBackoff,
		Multiplier:     DefaultMultiplier,
		MaxBackoff:     DefaultMaxBackoff,
		AttemptTimeout: DefaultAttemptTimeout,
		Retryable:      retryable,
	}
}

// ClampTimeout returns a copy whose attempt timeout is strictly below budget.
func (p Policy) ClampTimeout(budget time.Duration) Policy {
	if budget <= 0 {
		return p
	}
	if p.AttemptTimeout <= 0 || p.AttemptTimeout >= budget {
		p.AttemptTimeout = budget * 9 / 10
	}
	return p
}

// Backoff returns the wait before attempt n+1, for n starting at 1.
func (p Policy) Backoff(n int) time.Duration {
	d := p.InitialBackoff
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, attempts run
// out, or ctx is done. It returns the last error and the number of attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := max(p.Attempts, 1)
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for n := 1; n <= attempts; n++ {
		err = p.attempt(ctx, fn)
		if err == nil {
			return n, nil
		}
		if n == attempts || p.Retryable == nil || !p.Retryable(err) {
			return n, err
		}
		if serr := sleep(ctx, p.Backoff(n)); serr != nil {
			return n, err
		}
	}
	return attempts, err
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
