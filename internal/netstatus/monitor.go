// Package netstatus tracks whether the property backend is reachable.
package netstatus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"property-search/internal/metrics"
)

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is a snapshot of the monitor.
type Status struct {
	Online              bool      `json:"online"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Monitor remembers the outcome of the latest probe. It reports online until a probe fails.
type Monitor struct {
	pinger  Pinger
	timeout time.Duration

	mu     sync.RWMutex
	status Status
}

func NewMonitor(pinger Pinger, timeout time.Duration) *Monitor {
	metrics.BackendUp.Set(1)
	return &Monitor{
		pinger:  pinger,
		timeout: timeout,
		status:  Status{Online: true},
	}
}

// Probe pings the backend once and records the result.
func (m *Monitor) Probe(ctx context.Context) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	err := m.pinger.Ping(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	wasOnline := m.status.Online
	m.status.LastCheck = time.Now()
	if err != nil {
		m.status.Online = false
		m.status.LastError = err.Error()
		m.status.ConsecutiveFailures++
		metrics.BackendUp.Set(0)
		if wasOnline {
			slog.Warn("backend went offline", "component", "netstatus", "error", err)
		}
		return err
	}

	m.status.Online = true
	m.status.LastError = ""
	m.status.ConsecutiveFailures = 0
	metrics.BackendUp.Set(1)
	if !wasOnline {
		slog.Info("backend back online", "component", "netstatus")
	}
	return nil
}

// Online reports the latest known reachability.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
