package engine

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"dtg-replicator/internal/logging"
)

// StopWatcher tracks whether stop-<mapping> has appeared under a repl
// directory, using fsnotify instead of a stat() call at every poll point
// (spec §6 stop protocol; teacher used fsnotify for its own file/container
// watch sources — repurposed here to watch one marker file instead of log
// files).
type StopWatcher struct {
	stopPath string
	stopped  atomic.Bool
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewStopWatcher starts watching replDir for the creation of
// stop-<mapping>. If fsnotify setup fails, no watch goroutine runs and
// Stopped() relies on its own stat of the stop file alone.
func NewStopWatcher(replDir, mapping string, log *logging.Logger) *StopWatcher {
	sw := &StopWatcher{
		stopPath: filepath.Join(replDir, "stop-"+mapping),
		done:     make(chan struct{}),
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		if log != nil {
			log.Warnf("stop watcher: fsnotify unavailable, falling back to polling: %v", err)
		}
		return sw
	}
	if err := w.Add(replDir); err != nil {
		if log != nil {
			log.Warnf("stop watcher: cannot watch %s: %v", replDir, err)
		}
		w.Close()
		return sw
	}
	sw.watcher = w
	go sw.loop(log)
	return sw
}

func (sw *StopWatcher) loop(log *logging.Logger) {
	defer sw.watcher.Close()
	for {
		select {
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == sw.stopPath && (ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				sw.stopped.Store(true)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			if log != nil {
				log.Warnf("stop watcher: %v", err)
			}
		case <-sw.done:
			return
		}
	}
}

// Stopped reports whether a stop signal has been observed. Until the watcher
// has seen one, every call also stats the stop file directly, which covers a
// file that already existed before the watcher started.
func (sw *StopWatcher) Stopped() bool {
	return sw.stopped.Load() || statExists(sw.stopPath)
}

// Close stops the background watch goroutine.
func (sw *StopWatcher) Close() {
	close(sw.done)
}
