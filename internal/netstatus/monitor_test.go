package netstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("probe without deadline")
	}
	return f.err
}

func TestMonitorTransitions(t *testing.T) {
	p := &fakePinger{}
	m := NewMonitor(p, time.Second)
	assert.True(t, m.Online())

	p.err = errors.New("connection refused")
	assert.Error(t, m.Probe(context.Background()))
	assert.Error(t, m.Probe(context.Background()))
	s := m.Status()
	assert.False(t, s.Online)
	assert.Equal(t, 2, s.ConsecutiveFailures)
	assert.Equal(t, "connection refused", s.LastError)
	assert.False(t, s.LastCheck.IsZero())

	p.err = nil
	assert.NoError(t, m.Probe(context.Background()))
	s = m.Status()
	assert.True(t, s.Online)
	assert.Zero(t, s.ConsecutiveFailures)
	assert.Empty(t, s.LastError)
}
