package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrStopTimeout = errors.New("timed out waiting for running jobs")

// maxSleep bounds how long the scheduler sleeps when nothing is due.
const maxSleep = time.Minute

type SchedulerOption func(*Scheduler)

// WithErrorHandler receives the errors returned by jobs.
func WithErrorHandler(f func(job *Job, err error)) SchedulerOption {
	return func(s *Scheduler) { s.onError = f }
}

// WithRunHook is called after every job run with its duration.
func WithRunHook(f func(job *Job, d time.Duration, err error)) SchedulerOption {
	return func(s *Scheduler) { s.onRun = f }
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs registered jobs when they are due.
type Scheduler struct {
	l       *zap.Logger
	now     func() time.Time
	onError func(job *Job, err error)
	onRun   func(job *Job, d time.Duration, err error)

	mtx  sync.Mutex
	jobs []*Job
	wake chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(l *zap.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		l:    l.Named("job-scheduler"),
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the scheduler's clock.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Register adds a job and wakes the scheduler so the new job is taken into account.
func (s *Scheduler) Register(j *Job) {
	s.mtx.Lock()
	s.jobs = append(s.jobs, j)
	s.mtx.Unlock()

	s.l.Debug("registered job", zap.String("plugin_id", j.Plugin), zap.String("label", j.Label))
	s.notify()
}

// RemoveJob removes the jobs with the label. An empty plugin matches any plugin.
func (s *Scheduler) RemoveJob(label, plugin string) int {
	return s.remove(func(j *Job) bool {
		return j.Label == label && (plugin == "" || j.Plugin == plugin)
	})
}

// UnregisterPlugin removes every job of a plugin.
func (s *Scheduler) UnregisterPlugin(plugin string) int {
	return s.remove(func(j *Job) bool { return j.Plugin == plugin })
}

func (s *Scheduler) Clear() {
	s.remove(func(*Job) bool { return true })
}

func (s *Scheduler) remove(match func(*Job) bool) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	kept := s.jobs[:0]
	removed := 0
	for _, j := range s.jobs {
		if match(j) {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(s.jobs); i++ {
		s.jobs[i] = nil
	}
	s.jobs = kept
	return removed
}

func (s *Scheduler) Jobs() []*Job {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]*Job(nil), s.jobs...)
}

// Run executes due jobs until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mtx.Lock()
	s.cancel = cancel
	s.done = done
	s.mtx.Unlock()

	defer close(done)
	defer cancel()

	s.l.Info("running job scheduler")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.l.Info("stopping job scheduler")
			return
		case <-timer.C:
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		now := s.now()
		for _, j := range s.Jobs() {
			if !j.claim(now) {
				continue
			}
			if j.Threaded {
				s.wg.Add(1)
				go func(j *Job) {
					defer s.wg.Done()
					s.execute(ctx, j)
					s.notify()
				}(j)
				continue
			}
			s.execute(ctx, j)
		}

		timer.Reset(s.sleepFor(s.now()))
	}
}

func (s *Scheduler) sleepFor(now time.Time) time.Duration {
	sleep := maxSleep
	for _, j := range s.Jobs() {
		if j.isRunning() {
			continue
		}
		next := j.NextTime()
		if d := next.Sub(now); d < sleep {
			sleep = d
		}
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

func (s *Scheduler) execute(ctx context.Context, j *Job) {
	start := time.Now()
	err := j.run(ctx)
	if s.onRun != nil {
		s.onRun(j, time.Since(start), err)
	}
	if err == nil {
		return
	}

	s.l.Error("job failed", zap.String("plugin_id", j.Plugin), zap.String("label", j.Label), zap.Error(err))
	if s.onError != nil {
		s.onError(j, err)
	}
}

// Stop stops the scheduler and waits up to timeout for running jobs.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mtx.Lock()
	cancel, done := s.cancel, s.done
	s.mtx.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}
