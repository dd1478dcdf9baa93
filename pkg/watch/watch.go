// Package watch reports changed BVH files in motion library folders.
package watch

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teslashibe/go-locomotion/internal/log"
)

// DefaultDebounce is how long a folder must stay quiet before its changes
// are reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches library folders for BVH changes. Bursts of writes are
// coalesced: once no event arrived for the debounce interval, every changed
// path is sent on Events, sorted.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	Events chan []string
	Errors chan error

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once

	logger *slog.Logger
}

// New watches dirs with the default debounce.
func New(dirs ...string) (*Watcher, error) {
	return NewWithDebounce(DefaultDebounce, dirs...)
}

// NewWithDebounce watches dirs, reporting changes after debounce of quiet.
func NewWithDebounce(debounce time.Duration, dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher:  w,
		debounce: debounce,
		Events:   make(chan []string, 16),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
		logger:   log.For("watch"),
	}
	go watcher.run()
	watcher.logger.Info("watching motion libraries", "dirs", dirs)
	return watcher, nil
}

// Close stops watching and closes Events and Errors.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.Events)
		close(w.Errors)
		close(w.done)
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsMotionFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Debug("motion files changed", "paths", paths)
			select {
			case w.Events <- paths:
			case <-w.closeCh:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
				w.logger.Warn("watch error dropped", "error", err)
			}

		case <-w.closeCh:
			return
		}
	}
}

// IsMotionFile reports whether path is a BVH file.
func IsMotionFile(path string) bool {
	return filepath.Ext(path) == ".bvh"
}
