// Package debounce delays an action until its trigger has been quiet for a
// fixed interval. Every new trigger cancels the action scheduled by the
// previous one, so only the most recent action ever runs.
package debounce

import (
	"sync"
	"time"
)

// Timer is the handle of a scheduled action.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. time.AfterFunc satisfies it through
// RealScheduler; tests substitute a manual clock.
type Scheduler func(d time.Duration, f func()) Timer

// RealScheduler schedules on the runtime timer.
func RealScheduler(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer holds at most one pending action.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	schedule Scheduler
	timer    Timer
	gen      uint64
}

// New returns a Debouncer with the given quiet period. A nil scheduler uses
// RealScheduler.
func New(delay time.Duration, schedule Scheduler) *Debouncer {
	if schedule == nil {
		schedule = RealScheduler
	}
	return &Debouncer{delay: delay, schedule: schedule}
}

// Trigger schedules f, cancelling whatever was pending.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = d.schedule(d.delay, func() {
		d.mu.Lock()
		// A timer that already fired cannot be stopped; the generation check
		// drops it if a newer trigger arrived in the meantime.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		f()
	})
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
}

// Pending reports whether an action is scheduled and has not run yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// SetDelay changes the quiet period for subsequent triggers.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
