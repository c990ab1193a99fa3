package irc_manager

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type FloodConfig struct {
	BurstLines   int
	EmptyWait    time.Duration
	RefillRate   float64
	TextLength   int
	MaxWait      time.Duration
	PenaltyRatio float64
}

// floodControl spaces outgoing messages once the burst is used up. Long messages wait longer.
type floodControl struct {
	c       FloodConfig
	limiter *rate.Limiter
}

func newFloodControl(c FloodConfig) *floodControl {
	burst := c.BurstLines
	if burst < 1 {
		burst = 1
	}

	limit := rate.Limit(c.RefillRate)
	if c.RefillRate <= 0 {
		if c.EmptyWait > 0 {
			limit = rate.Every(c.EmptyWait)
		} else {
			limit = rate.Inf
		}
	}

	return &floodControl{
		c:       c,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (f *floodControl) penalty(text string) time.Duration {
	if f.c.PenaltyRatio <= 0 || f.c.TextLength <= 0 {
		return 0
	}
	extra := len(text) - f.c.TextLength
	if extra <= 0 {
		return 0
	}
	seconds := float64(extra) / (float64(f.c.TextLength) * f.c.PenaltyRatio)
	return time.Duration(seconds * float64(time.Second))
}

// delay reserves a send slot at now and returns how long to wait before sending text.
func (f *floodControl) delay(now time.Time, text string) time.Duration {
	d := f.limiter.ReserveN(now, 1).DelayFrom(now)
	if d <= 0 {
		return 0
	}

	if d < f.c.EmptyWait {
		d = f.c.EmptyWait
	}
	d += f.penalty(text)
	if f.c.MaxWait > 0 && d > f.c.MaxWait {
		d = f.c.MaxWait
	}
	return d
}

const (
	loopWindow     = 8
	loopHistory    = 10
	loopRepeats    = 5
	loopEllipses   = 3
	loopTimeWindow = 2 * time.Minute
	loopText       = "..."
)

type sentMessage struct {
	at   time.Time
	text string
}

// antiLoop stops the bot from repeating itself to the same recipient.
type antiLoop struct {
	mtx     sync.Mutex
	history map[string][]sentMessage
}

func newAntiLoop() *antiLoop {
	return &antiLoop{history: make(map[string][]sentMessage)}
}

// admit returns the text to send to recipient, or false when the message must be dropped.
// Admitted messages are recorded.
func (a *antiLoop) admit(now time.Time, recipient, text string) (string, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	stack := a.history[recipient]
	if len(stack) > 0 {
		elapsed := now.Sub(stack[len(stack)-1].at)

		recent := stack
		if len(recent) > loopWindow {
			recent = recent[len(recent)-loopWindow:]
		}
		if count(recent, text) >= loopRepeats && elapsed < loopTimeWindow {
			text = loopText
			if count(recent, loopText) >= loopEllipses {
				return "", false
			}
		}
	}

	stack = append(stack, sentMessage{at: now, text: text})
	if len(stack) > loopHistory {
		stack = stack[len(stack)-loopHistory:]
	}
	a.history[recipient] = stack

	return text, true
}

func count(stack []sentMessage, text string) int {
	n := 0
	for _, m := range stack {
		if m.text == text {
			n++
		}
	}
	return n
}
