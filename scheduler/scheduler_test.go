package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-lt/utils"
)

func noop(context.Context) error { return nil }

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("every day at three", "", noop, utils.NewNopLogger())
	assert.Error(t, err)

	_, err = New("0 3 * * *", "Mars/Olympus", noop, utils.NewNopLogger())
	assert.Error(t, err)
}

func TestNextDailyRun(t *testing.T) {
	s, err := New("0 3 * * *", "UTC", noop, utils.NewNopLogger())
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC), s.Next(from).UTC())

	from = time.Date(2024, 3, 1, 2, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), s.Next(from).UTC())
}

func TestSchedulerRunsJob(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1s", "", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, utils.NewNopLogger())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestSchedulerSkipsOverlapAndStopCancels(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", "", func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}, utils.NewNopLogger())
	require.NoError(t, err)

	s.Start()
	time.Sleep(3500 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not wait for and cancel the running job")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", "", func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("first run explodes")
		}
		return nil
	}, utils.NewNopLogger())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(4 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}
