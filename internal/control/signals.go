// Package control coordinates cooperative stop/pause of long-running work
// through signal files under the project-local .drover/signals directory.
// Operators create a "kill" or "pause" file (or run the matching command)
// and running workflows notice on their next check.
package control

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often StopContext rechecks the signal files.
const DefaultPollInterval = 2 * time.Second

// Signals watches the signals directory for kill/pause files.
// An fsnotify watcher picks up new files immediately; every read also
// stats the files directly, so signals are still seen when the watcher
// could not start.
type Signals struct {
	dir string

	mu    sync.RWMutex
	stop  bool
	pause bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewSignals creates the signals directory under projectRoot and starts
// watching it. A failure to start the watcher is not an error; reads
// fall back to polling the files.
func NewSignals(projectRoot string) (*Signals, error) {
	dir := filepath.Join(projectRoot, ".drover", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Signals{
		dir:  dir,
		done: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher

	go s.watchLoop()

	return s, nil
}

// watchLoop flips the in-memory flags as signal files appear.
func (s *Signals) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			s.mu.Lock()
			switch filepath.Base(event.Name) {
			case "kill":
				s.stop = true
			case "pause":
				s.pause = true
			}
			s.mu.Unlock()
		case <-s.watcher.Errors:
			// Keep watching; reads stat the files anyway.
		}
	}
}

// ShouldStop returns true if a kill signal has been received.
func (s *Signals) ShouldStop() bool {
	s.checkFile("kill")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stop
}

// ShouldPause returns true if a pause signal has been received.
func (s *Signals) ShouldPause() bool {
	s.checkFile("pause")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pause
}

// checkFile stats a signal file directly in case the watcher missed it.
func (s *Signals) checkFile(name string) {
	if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
		return
	}
	s.mu.Lock()
	switch name {
	case "kill":
		s.stop = true
	case "pause":
		s.pause = true
	}
	s.mu.Unlock()
}

// SendKill creates the kill signal file.
func (s *Signals) SendKill() error {
	return os.WriteFile(filepath.Join(s.dir, "kill"), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause creates the pause signal file.
func (s *Signals) SendPause() error {
	return os.WriteFile(filepath.Join(s.dir, "pause"), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the signal files and resets the in-memory flags.
func (s *Signals) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop = false
	s.pause = false

	os.Remove(filepath.Join(s.dir, "kill"))
	os.Remove(filepath.Join(s.dir, "pause"))
}

// Dir returns the signals directory being watched.
func (s *Signals) Dir() string {
	return s.dir
}

// StopContext derives a context that is cancelled when a kill signal
// appears, rechecking every interval. Callers hand the returned context
// to a workflow run to make it operator-cancellable.
func (s *Signals) StopContext(ctx context.Context, interval time.Duration) (context.Context, context.CancelFunc) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if s.ShouldStop() {
					cancel()
					return
				}
			}
		}
	}()
	return runCtx, cancel
}

// Close stops the watcher goroutine.
func (s *Signals) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}
