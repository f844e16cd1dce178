// Package watcher bridges filesystem changes in the tasks directory to event
// re-derivation. fsnotify is not perfectly reliable on every platform, so a
// full rebuild also runs on a daily schedule.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/events"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

const (
	debounceWindow = time.Second
	sweepInterval  = 200 * time.Millisecond

	// rebuildCronExpr runs the drift-repair rebuild at 00:01 every day.
	rebuildCronExpr = "1 0 * * *"
)

// Rederiver receives settled file changes.
type Rederiver interface {
	RederivePath(relPath string)
	RebuildAll()
}

// CronRegistrar registers the daily rebuild job.
type CronRegistrar interface {
	AddCron(id, expr string) error
}

// Watcher monitors the tasks directory tree for Markdown changes.
type Watcher struct {
	fsw       *fsnotify.Watcher
	rederiver Rederiver
	logger    *logger.Logger
	root      string // vault root, absolute
	tasksDir  string // vault-relative tasks directory

	mu      sync.Mutex
	pending map[string]time.Time // vault-relative path -> last event time
	running bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a watcher over root/tasksDir.
func New(root, tasksDir string, rederiver Rederiver, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	return &Watcher{
		fsw:       fsw,
		rederiver: rederiver,
		logger:    log,
		root:      root,
		tasksDir:  tasksDir,
		pending:   make(map[string]time.Time),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start performs the cold scan, registers the daily rebuild, and begins
// watching. Non-blocking; the event loop runs in its own goroutine.
func (w *Watcher) Start(ctx context.Context, registrar CronRegistrar) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// A failed start leaves the watcher not-running so Stop stays a no-op;
	// the event loop only exists once every setup step succeeded.
	fail := func(err error) error {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	// Cold scan: derive everything that already exists before trusting
	// watch events for increments.
	w.rederiver.RebuildAll()

	if err := registrar.AddCron(events.RebuildJobID, rebuildCronExpr); err != nil {
		return fail(fmt.Errorf("register daily rebuild: %w", err))
	}

	watchRoot := filepath.Join(w.root, w.tasksDir)
	if err := w.addTree(watchRoot); err != nil {
		return fail(fmt.Errorf("watch %s: %w", watchRoot, err))
	}
	w.logger.Info("watching tasks directory", logger.Field{Key: "path", Value: watchRoot})

	go w.run(ctx)
	return nil
}

// Stop releases the watcher and waits for the event loop. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing fs watcher", logger.Field{Key: "error", Value: err.Error()})
	}
	w.logger.Info("watcher stopped")
}

// addTree watches dir and every subdirectory under it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watch error", logger.Field{Key: "error", Value: err.Error()})

		case <-sweep.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New subdirectories must be watched as they appear.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory",
					logger.Field{Key: "path", Value: event.Name},
					logger.Field{Key: "error", Value: err.Error()})
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)

	w.mu.Lock()
	w.pending[relPath] = time.Now()
	w.mu.Unlock()
}

// flushSettled re-derives every path whose last event is older than the
// debounce window.
func (w *Watcher) flushSettled() {
	now := time.Now()

	w.mu.Lock()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= debounceWindow {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.logger.Debug("file change settled", logger.Field{Key: "path", Value: path})
		w.rederiver.RederivePath(path)
	}
}
