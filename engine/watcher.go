// File-watch-driven restart: watching a set of paths and debouncing
// bursts of filesystem events (an editor's save-as-rename-then-write
// dance, a build tool touching many files at once) into a single
// restart trigger.
package engine

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 300 * time.Millisecond

// Watcher wraps fsnotify, forwarding a debounced restart signal to a
// RestartFunc rather than raw filesystem events.
type Watcher struct {
	fsw    *fsnotify.Watcher
	stopCh chan struct{}
}

// NewWatcher opens an fsnotify watcher and adds each of paths to it. A
// path that doesn't exist yet is skipped rather than failing the whole
// watcher, since config-reload-on-create is a reasonable thing to want.
func NewWatcher(paths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewError(KindConfiguration, "watcher.New", err)
	}
	for _, p := range paths {
		_ = fsw.Add(p) // best effort; a missing path just means no events from it
	}
	return &Watcher{fsw: fsw, stopCh: make(chan struct{})}, nil
}

// Run blocks, debouncing fsnotify events and invoking onRestart at most
// once per watchDebounce window, until Stop is called.
func (w *Watcher) Run(onRestart RestartFunc) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			onRestart("watch: filesystem change detected")
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.fsw.Close()
}
