package apiclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.RecordFailure(500)
	b.RecordFailure(0)
	b.RecordSuccess()
	b.RecordFailure(500)
	b.RecordFailure(500)
	assert.True(t, b.CanProceed())

	b.RecordFailure(503)
	assert.False(t, b.CanProceed())

	isOpen, failures, total := b.GetStatus()
	assert.True(t, isOpen)
	assert.Equal(t, 5, failures)
	assert.Equal(t, 6, total)
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure(500)
	assert.False(t, b.CanProceed())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.CanProceed())

	// one more failure while half-open reopens immediately
	b.RecordFailure(500)
	assert.False(t, b.CanProceed())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.CanProceed())
	b.RecordSuccess()
	assert.True(t, b.CanProceed())
}
