// Package config provides override-file watching functionality
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DriftCallback is invoked when the deployment override file changes on
// disk after startup. The startup snapshot itself is immutable; the
// callback receives the snapshot a restart would produce.
type DriftCallback func(current, next *Snapshot)

// Watcher watches the deployment override file and reports configuration
// drift. It never mutates the snapshot the process started with.
type Watcher struct {
	// Loader used to rebuild snapshots on change
	loader *Loader

	// Snapshot the process started with
	current *Snapshot

	// File system watcher
	fsWatcher *fsnotify.Watcher

	// Path of the watched override file
	overridePath string

	// Drift callbacks
	callbacks   []DriftCallback
	callbacksMu sync.RWMutex

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for the watch goroutine
	wg sync.WaitGroup
}

// NewWatcher creates a watcher for the loader's override file.
func NewWatcher(loader *Loader, current *Snapshot) (*Watcher, error) {
	if loader.overridePath == "" {
		return nil, fmt.Errorf("loader has no override path to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		loader:       loader,
		current:      current,
		fsWatcher:    fsWatcher,
		overridePath: loader.overridePath,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// OnDrift registers a drift callback.
func (w *Watcher) OnDrift(cb DriftCallback) {
	w.callbacksMu.Lock()
	defer w.callbacksMu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the override file's directory. Watching the
// directory rather than the file tolerates the file not existing yet.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.overridePath)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch override directory %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.watchLoop()

	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// watchLoop processes file system events until cancelled. Events are
// debounced because editors commonly emit several per save.
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isOverrideEvent(event) {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case <-pending:
			pending = nil
			w.reload()

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; keep watching.

		case <-w.ctx.Done():
			return
		}
	}
}

// isOverrideEvent reports whether the event concerns the override file.
func (w *Watcher) isOverrideEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.overridePath) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove)
}

// reload rebuilds a snapshot and notifies callbacks on success. A
// malformed override on disk is ignored here; it will fail loudly on the
// next process start instead.
func (w *Watcher) reload() {
	next, err := w.loader.Load()
	if err != nil {
		return
	}

	w.callbacksMu.RLock()
	callbacks := make([]DriftCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.callbacksMu.RUnlock()

	for _, cb := range callbacks {
		cb(w.current, next)
	}
}
