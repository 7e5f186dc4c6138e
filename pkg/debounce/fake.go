package debounce

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Scheduler driven by explicit Advance calls. It lets tests
// of debounced code run without sleeping.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManualClock returns a clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Schedule implements Scheduler.
func (c *ManualClock) Schedule(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward and runs, in order, every action whose
// deadline has been reached. Actions run on the caller's goroutine.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due, rest []*manualTimer
	for _, t := range c.pending {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of scheduled, unstopped actions.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
