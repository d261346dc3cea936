package apiclient

import (
	"log/slog"
	"sync"
	"time"
)

// Breaker stops calling a failing backend. It opens after failureThreshold consecutive
// failures and lets one call through again once resetTimeout has passed.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	failures            int
	totalRequests       int
	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time

	now   func() time.Time
	mutex sync.Mutex
}

// NewBreaker creates a breaker. A threshold below 1 is treated as 1.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// RecordSuccess closes the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.totalRequests++
	b.consecutiveFailures = 0
}

// RecordFailure counts a network failure (status 0) or a 5xx/429 response.
func (b *Breaker) RecordFailure(statusCode int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures++
	b.consecutiveFailures++
	b.totalRequests++
	b.lastFailureTime = b.now()

	if !b.isOpen && b.consecutiveFailures >= b.failureThreshold {
		b.isOpen = true
		slog.Warn("backend circuit breaker open",
			"component", "apiclient",
			"consecutive_failures", b.consecutiveFailures,
			"last_status", statusCode,
			"reset_after", b.resetTimeout)
	}
}

// CanProceed reports whether a call may be made, moving to half-open after the timeout.
func (b *Breaker) CanProceed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isOpen {
		return true
	}

	if b.now().Sub(b.lastFailureTime) > b.resetTimeout {
		slog.Info("backend circuit breaker half-open", "component", "apiclient", "after", b.resetTimeout)
		b.isOpen = false
		b.consecutiveFailures = b.failureThreshold - 1
		return true
	}

	return false
}

// GetStatus returns the current breaker state.
func (b *Breaker) GetStatus() (isOpen bool, failures int, total int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isOpen, b.failures, b.totalRequests
}
