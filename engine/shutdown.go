// Start/Stop orchestration: open every endpoint's listener(s), run the
// scheduler and restart wiring, and drain in-flight work on shutdown
// instead of dropping it.
package engine

import (
	"context"
	"sync"
	"time"
)

// DefaultShutdownGrace bounds how long Stop waits for in-flight Request
// Contexts to finish before closing their sockets out from under them.
const DefaultShutdownGrace = 30 * time.Second

type runningListener struct {
	listener *Listener
	gates    int32
}

// Start opens every registered endpoint (spreading accept loops across
// NumGates goroutines per endpoint when set above 1), starts the
// scheduler's worker pool, and wires restart timers/schedules. It
// returns once every endpoint is listening; Serve loops run in the
// background until Stop is called.
func (sc *ServerContext) Start(onRestart RestartFunc) error {
	sc.sched.Start()

	if onRestart != nil {
		if err := sc.wireRestarts(onRestart); err != nil {
			return err
		}
	}

	var opened []*runningListener
	for _, ep := range sc.Endpoints() {
		l := NewListener(ep, sc)
		if err := l.Open(); err != nil {
			for _, r := range opened {
				r.listener.Shut()
			}
			return err
		}
		gates := ep.NumGates
		if gates <= 0 {
			gates = 1
		}
		opened = append(opened, &runningListener{listener: l, gates: gates})
	}

	sc.runningMu.Lock()
	sc.running = opened
	sc.runningMu.Unlock()

	for _, r := range opened {
		for g := int32(0); g < r.gates; g++ {
			go r.listener.Serve(sc.sched)
		}
	}
	return nil
}

// Stop performs a graceful shutdown: stop accepting new connections,
// wait up to grace for in-flight Request Contexts to finish on their
// own, then force-close anything still open. OnStop handlers run after
// listeners are closed but before the worker pool itself stops, so they
// can still use the scheduler (e.g. to flush shared state).
func (sc *ServerContext) Stop(grace time.Duration) {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	sc.runningMu.Lock()
	running := sc.running
	sc.running = nil
	sc.runningMu.Unlock()

	var wg sync.WaitGroup
	for _, r := range running {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			l.Shut()
		}(r.listener)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(grace):
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	for _, fn := range sc.onStopHandlers {
		fn(ctx)
	}

	if sc.watcher != nil {
		sc.watcher.Stop()
	}
	sc.sched.Stop()
}

// WatchPaths starts a file watcher over paths, invoking onRestart
// (debounced) when any of them changes.
func (sc *ServerContext) WatchPaths(paths []string, onRestart RestartFunc) error {
	w, err := NewWatcher(paths)
	if err != nil {
		return err
	}
	sc.watcher = w
	go w.Run(onRestart)
	return nil
}
