// Package retry wraps an operation with bounded exponential-backoff retries.
//
// Retry n (counted from 0) waits InitialDelay * 2^n, capped at MaxDelay, plus up to
// Jitter*delay of random extra wait. After MaxRetries retries the last error is returned
// unchanged so callers can still inspect it with errors.As.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultJitter       = 0.2
)

// Policy configures a retry loop. The zero value retries nothing.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration // 0 disables the cap
	Jitter       float64       // fraction of the delay, clamped to [0,1]

	// Retryable reports whether err is worth another attempt. nil retries every error.
	Retryable func(err error) bool

	// OnRetry is called before each wait with the retry index and the chosen delay.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 3 retries starting at one second, capped at 30s with 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Jitter:       DefaultJitter,
	}
}

// Backoff returns the wait before retry number attempt (0-based), without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := initial
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
		if delay > time.Duration(1<<62)/2 {
			delay = time.Duration(1<<63 - 1)
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// delay adds jitter on top of Backoff and re-applies the cap.
func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		extra := rand.Float64() * jitter * float64(d)
		if extra >= float64(math.MaxInt64-d) {
			d = math.MaxInt64
		} else {
			d += time.Duration(extra)
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do runs op under p and returns its first success or the last failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	return NewRetrier(p, op).Run(ctx)
}

// Retrier is the stateful form of Do. It remembers how many retries the current run
// has scheduled so callers can report them once the run gives up.
type Retrier[T any] struct {
	policy Policy
	op     func(ctx context.Context) (T, error)

	mu       sync.Mutex
	attempts int
}

func NewRetrier[T any](p Policy, op func(ctx context.Context) (T, error)) *Retrier[T] {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Retrier[T]{policy: p, op: op}
}

// Attempts returns the retries scheduled by the latest run. It is reset to zero
// when a run starts and when an attempt succeeds.
func (r *Retrier[T]) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Retrier[T]) setAttempts(n int) {
	r.mu.Lock()
	r.attempts = n
	r.mu.Unlock()
}

// Run invokes the operation, retrying failures per the policy. Each call is an
// independent run; the counter only advances for retries scheduled inside it.
func (r *Retrier[T]) Run(ctx context.Context) (T, error) {
	r.setAttempts(0)

	attempt := 0
	for {
		v, err := r.op(ctx)
		if err == nil {
			r.setAttempts(0)
			return v, nil
		}

		if attempt >= r.policy.MaxRetries || !r.policy.retryable(err) {
			var zero T
			return zero, err
		}

		wait := r.policy.delay(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, wait, err)
		}
		slog.Debug("retry scheduled",
			"component", "retry",
			"attempt", attempt+1,
			"max_retries", r.policy.MaxRetries,
			"delay", wait,
			"error", err)

		attempt++
		r.setAttempts(attempt)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
