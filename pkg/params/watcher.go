package params

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/canmaster/pkg/log"
)

// DefaultDebounce coalesces bursts of write events from editors.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher calls Reload whenever the watched file is written or created.
// The parent directory is watched so that atomic renames are seen.
type FileWatcher struct {
	path     string
	reload   func() error
	debounce time.Duration
	logger   log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, reload func() error, logger log.Logger) *FileWatcher {
	return &FileWatcher{
		path:     filepath.Clean(path),
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   log.OrNoop(logger),
	}
}

// Run watches until ctx is canceled.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching parameters file", log.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("parameters watcher error", log.Err(err))
		}
	}
}

func (w *FileWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(); err != nil {
			w.logger.Error("reload parameters failed", log.String("path", w.path), log.Err(err))
			return
		}
		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()
		w.logger.Info("parameters reloaded; applied at next configure", log.String("path", w.path))
	})
}

// Reloads returns the number of successful reloads.
func (w *FileWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
