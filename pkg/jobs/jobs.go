package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrNoIntervals = errors.New("job needs at least one interval")

// Handler is run every time one of the intervals of a job elapses.
type Handler func(ctx context.Context) error

// Job runs a handler at one or more intervals.
type Job struct {
	Intervals []time.Duration
	Plugin    string
	Label     string
	Threaded  bool
	Handler   Handler

	mtx       sync.Mutex
	nextTimes map[time.Duration]time.Time
	running   bool
}

// NewJob schedules the first run of every interval one interval after now.
func NewJob(now time.Time, intervals []time.Duration, plugin, label string, threaded bool, handler Handler) (*Job, error) {
	if len(intervals) == 0 {
		return nil, ErrNoIntervals
	}

	j := &Job{
		Plugin:    plugin,
		Label:     label,
		Threaded:  threaded,
		Handler:   handler,
		nextTimes: make(map[time.Duration]time.Time),
	}

	for _, i := range intervals {
		if i <= 0 {
			return nil, fmt.Errorf("invalid interval for job %s: %s", label, i)
		}
		if _, ok := j.nextTimes[i]; ok {
			continue
		}
		j.Intervals = append(j.Intervals, i)
		j.nextTimes[i] = now.Add(i)
	}
	sort.Slice(j.Intervals, func(a, b int) bool { return j.Intervals[a] < j.Intervals[b] })

	return j, nil
}

func (j *Job) String() string {
	intervals := make([]string, 0, len(j.Intervals))
	for _, i := range j.Intervals {
		intervals = append(intervals, i.String())
	}
	return fmt.Sprintf("<Job %s.%s [%s]>", j.Plugin, j.Label, strings.Join(intervals, "|"))
}

// IsReady reports whether at least one interval elapsed and the job is not running.
func (j *Job) IsReady(now time.Time) bool {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	if j.running {
		return false
	}
	for _, next := range j.nextTimes {
		if !now.Before(next) {
			return true
		}
	}
	return false
}

func (j *Job) isRunning() bool {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	return j.running
}

// NextTime is the earliest time the job is due.
func (j *Job) NextTime() time.Time {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	var earliest time.Time
	for _, next := range j.nextTimes {
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}

// NextTimes returns the next due time of each interval.
func (j *Job) NextTimes() map[time.Duration]time.Time {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	out := make(map[time.Duration]time.Time, len(j.nextTimes))
	for k, v := range j.nextTimes {
		out[k] = v
	}
	return out
}

// advance moves every elapsed interval past now.
func (j *Job) advance(now time.Time) {
	for interval, next := range j.nextTimes {
		if now.Before(next) {
			continue
		}
		for !now.Before(next) {
			next = next.Add(interval)
		}
		j.nextTimes[interval] = next
	}
}

// claim marks the job running and schedules the next run of every elapsed interval. It fails
// when the job is already running or nothing is due.
func (j *Job) claim(now time.Time) bool {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	if j.running {
		return false
	}
	due := false
	for _, next := range j.nextTimes {
		if !now.Before(next) {
			due = true
			break
		}
	}
	if !due {
		return false
	}

	j.running = true
	j.advance(now)
	return true
}

// Execute runs the handler once and schedules the next run of every elapsed interval.
func (j *Job) Execute(ctx context.Context, now time.Time) error {
	j.mtx.Lock()
	j.running = true
	j.advance(now)
	j.mtx.Unlock()

	return j.run(ctx)
}

// run calls the handler of a claimed job and releases it.
func (j *Job) run(ctx context.Context) (err error) {
	defer func() {
		j.mtx.Lock()
		j.running = false
		j.mtx.Unlock()

		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v", j, rec)
		}
	}()

	if j.Handler == nil {
		return nil
	}
	return j.Handler(ctx)
}
