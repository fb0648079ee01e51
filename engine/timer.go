// Fixed-interval timers: named, non-reentrant (a tick still running when
// the next one comes due is skipped, not queued) background jobs.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Timer fires fn every Interval on sched's worker pool. Skip-if-busy is
// implemented with a single atomic flag rather than a mutex so a timer
// whose job runs long never backs up a queue of pending ticks.
//
// SkipFirst suppresses that many leading ticks before the handler ever
// runs (0 means fire on the first tick). Limit caps the total number of
// times fn is allowed to run before the timer stops itself (0 means
// unlimited).
type Timer struct {
	Name      string
	Interval  time.Duration
	SkipFirst int
	Limit     int
	fn        func()

	running atomic.Bool
	skipped int32
	fired   int32
	stopCh  chan struct{}
	stopped sync.Once
	ticker  *time.Ticker
}

// AddTimer registers a named timer and starts its ticker immediately.
// Re-registering an existing name replaces it, matching the auto-restart
// wiring's need to redefine __pode_restart_period__ across runs.
func (s *Scheduler) AddTimer(name string, interval time.Duration, fn func()) (*Timer, error) {
	return s.AddTimerOpts(name, interval, 0, 0, fn)
}

// AddTimerOpts is AddTimer with skip-count and firing-limit control.
func (s *Scheduler) AddTimerOpts(name string, interval time.Duration, skipFirst, limit int, fn func()) (*Timer, error) {
	if interval <= 0 {
		return nil, NewError(KindConfiguration, "scheduler.AddTimer", fmt.Errorf("timer %q: interval must be positive", name))
	}
	s.timersMu.Lock()
	for i, t := range s.timers {
		if t.Name == name {
			t.stop()
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			break
		}
	}
	t := &Timer{Name: name, Interval: interval, SkipFirst: skipFirst, Limit: limit, fn: fn, stopCh: make(chan struct{})}
	s.timers = append(s.timers, t)
	s.timersMu.Unlock()

	t.ticker = time.NewTicker(interval)
	go t.loop(s)
	return t, nil
}

func (t *Timer) loop(s *Scheduler) {
	for {
		select {
		case <-t.stopCh:
			t.ticker.Stop()
			return
		case <-t.ticker.C:
			if int(atomic.LoadInt32(&t.skipped)) < t.SkipFirst {
				atomic.AddInt32(&t.skipped, 1)
				continue
			}
			if !t.running.CompareAndSwap(false, true) {
				continue // previous tick still in flight; this one is dropped, not queued
			}
			s.Submit(func() {
				defer t.running.Store(false)
				t.fn()
				if t.Limit > 0 && int(atomic.AddInt32(&t.fired, 1)) >= t.Limit {
					t.stop()
				}
			})
		}
	}
}

func (t *Timer) stop() {
	t.stopped.Do(func() { close(t.stopCh) })
}

// RemoveTimer stops and forgets a named timer.
func (s *Scheduler) RemoveTimer(name string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for i, t := range s.timers {
		if t.Name == name {
			t.stop()
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}
