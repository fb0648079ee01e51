// Lockable is the single server-wide mutual-exclusion primitive, reached
// from handler code through ServerContext.Lockable. Shared State, session
// records and the timer/schedule registries each guard themselves with
// their own mutexes and do not take it. It is a plain mutex and is not
// reentrant: a goroutine that already holds it and acquires it again
// deadlocks.
package engine

import "sync"

// Lockable is not stored on the Request Context or passed to timer and
// schedule ticks; code reaches it through rc.Server.Lockable(). Acquisition
// is scoped: callers get back a release closure
// instead of calling Lock/Unlock directly, so every exit path (including a
// panic unwinding through a deferred release) releases it.
type Lockable struct {
	mu sync.Mutex
}

func NewLockable() *Lockable { return &Lockable{} }

// Acquire returns a release function; call it (typically via defer) to
// guarantee release on all exit paths, 
func (l *Lockable) Acquire() (release func()) {
	l.mu.Lock()
	return l.mu.Unlock
}

// WithLock runs fn while holding the lock, releasing it even on panic.
func (l *Lockable) WithLock(fn func()) {
	release := l.Acquire()
	defer release()
	fn()
}
