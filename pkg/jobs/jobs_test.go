package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestNewJob(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewJob(now, nil, "p", "empty", true, nil)
	require.ErrorIs(t, err, ErrNoIntervals)

	_, err = NewJob(now, []time.Duration{-time.Second}, "p", "negative", true, nil)
	require.Error(t, err)

	j, err := NewJob(now, []time.Duration{time.Minute, 5 * time.Second, time.Minute}, "p", "tick", true, nil)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{5 * time.Second, time.Minute}, j.Intervals)
	require.Equal(t, map[time.Duration]time.Time{
		5 * time.Second: now.Add(5 * time.Second),
		time.Minute:     now.Add(time.Minute),
	}, j.NextTimes())
	require.Equal(t, now.Add(5*time.Second), j.NextTime())
	require.Equal(t, "<Job p.tick [5s|1m0s]>", j.String())
}

func TestJobReadyAndExecute(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := 0
	j, err := NewJob(now, []time.Duration{10 * time.Second, 25 * time.Second}, "p", "tick", false, func(ctx context.Context) error {
		runs++
		return nil
	})
	require.NoError(t, err)

	require.False(t, j.IsReady(now.Add(9*time.Second)))
	require.True(t, j.IsReady(now.Add(10*time.Second)))

	require.NoError(t, j.Execute(context.Background(), now.Add(10*time.Second)))
	require.Equal(t, 1, runs)
	require.Equal(t, now.Add(20*time.Second), j.NextTimes()[10*time.Second])
	require.Equal(t, now.Add(25*time.Second), j.NextTimes()[25*time.Second])

	// A late run skips the missed slots instead of firing them all.
	require.NoError(t, j.Execute(context.Background(), now.Add(47*time.Second)))
	require.Equal(t, now.Add(50*time.Second), j.NextTimes()[10*time.Second])
	require.Equal(t, now.Add(50*time.Second), j.NextTimes()[25*time.Second])
}

func TestJobExecutePanic(t *testing.T) {
	now := time.Now()
	j, err := NewJob(now, []time.Duration{time.Second}, "p", "boom", false, func(ctx context.Context) error {
		panic("boom")
	})
	require.NoError(t, err)

	err = j.Execute(context.Background(), now.Add(time.Second))
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.True(t, j.IsReady(now.Add(2*time.Second)))
}

func TestSchedulerRegistry(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	now := time.Now()

	for _, tt := range []struct{ plugin, label string }{
		{"a", "one"}, {"a", "two"}, {"b", "one"}, {"c", "three"},
	} {
		j, err := NewJob(now, []time.Duration{time.Hour}, tt.plugin, tt.label, true, nil)
		require.NoError(t, err)
		s.Register(j)
	}
	require.Len(t, s.Jobs(), 4)

	require.Equal(t, 1, s.RemoveJob("one", "b"))
	require.Equal(t, 2, s.UnregisterPlugin("a"))
	require.Len(t, s.Jobs(), 1)
	require.Equal(t, "three", s.Jobs()[0].Label)

	s.Clear()
	require.Empty(t, s.Jobs())
}

func TestSchedulerRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fast, failing int32
	var mtx sync.Mutex
	errs := []error{}

	s := NewScheduler(zap.NewNop(), WithErrorHandler(func(job *Job, err error) {
		mtx.Lock()
		defer mtx.Unlock()
		errs = append(errs, err)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	j, err := NewJob(s.Now(), []time.Duration{10 * time.Millisecond}, "p", "fast", true, func(ctx context.Context) error {
		atomic.AddInt32(&fast, 1)
		return nil
	})
	require.NoError(t, err)
	s.Register(j)

	j, err = NewJob(s.Now(), []time.Duration{15 * time.Millisecond}, "p", "failing", false, func(ctx context.Context) error {
		atomic.AddInt32(&failing, 1)
		return errors.New("nope")
	})
	require.NoError(t, err)
	s.Register(j)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fast) >= 3 && atomic.LoadInt32(&failing) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(time.Second))
	<-done

	mtx.Lock()
	defer mtx.Unlock()
	require.NotEmpty(t, errs)
	require.EqualError(t, errs[0], "nope")
}

func TestSchedulerStopWaitsForJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	var finished int32

	s := NewScheduler(zap.NewNop())
	j, err := NewJob(s.Now(), []time.Duration{time.Millisecond}, "p", "slow", true, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	})
	require.NoError(t, err)
	s.Register(j)

	go s.Run(context.Background())
	<-started

	require.NoError(t, s.Stop(time.Second))
	require.Equal(t, int32(1), atomic.LoadInt32(&finished))
}
