package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (f *fakeSessions) SweepExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func TestRunOnce(t *testing.T) {
	f := &fakeSessions{n: 3}
	s := NewSweeper(f, "", zerolog.Nop())

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestStart_EmptyScheduleDisabled(t *testing.T) {
	f := &fakeSessions{}
	s := NewSweeper(f, "", zerolog.Nop())

	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, f.calls.Load())
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewSweeper(&fakeSessions{}, "every now and then", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	f := &fakeSessions{n: 1}
	s := NewSweeper(f, "@every 1s", zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return f.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
