// Package watch triggers rebuilds when files below the source tree change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is the coalescing window between a change and the rebuild.
const DefaultInterval = 200 * time.Millisecond

// RebuildFunc runs one rebuild. changed lists the touched paths, sorted.
type RebuildFunc func(ctx context.Context, changed []string) error

// Watcher coalesces file events into at most one rebuild per interval.
// Rebuilds run on the Run goroutine, one at a time.
type Watcher struct {
	fsw      *fsnotify.Watcher
	interval time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

// New watches every directory below each of dirs.
func New(dirs []string, interval time.Duration) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, interval: interval, pending: map[string]struct{}{}}
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Watched returns the registered directories.
func (w *Watcher) Watched() []string {
	list := w.fsw.WatchList()
	sort.Strings(list)
	return list
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run dispatches rebuilds until ctx is done. A failing rebuild is logged and
// the watch continues.
func (w *Watcher) Run(ctx context.Context, rebuild RebuildFunc) error {
	logger := ctxlog.FromContext(ctx)
	tick := time.NewTicker(w.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error.", "error", err)
		case <-tick.C:
			if err := w.flush(ctx, rebuild); err != nil {
				logger.Error("Rebuild failed.", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ignored(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				ctxlog.FromContext(ctx).Warn("Cannot watch new directory.", "path", ev.Name, "error", err)
			}
		}
	}
	w.mu.Lock()
	w.pending[ev.Name] = struct{}{}
	w.mu.Unlock()
}

// flush runs rebuild when events arrived since the last flush.
func (w *Watcher) flush(ctx context.Context, rebuild RebuildFunc) error {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return nil
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = map[string]struct{}{}
	w.mu.Unlock()

	sort.Strings(changed)
	ctxlog.FromContext(ctx).Info("Rebuilding.", "changed", len(changed))
	return rebuild(ctx, changed)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored skips dot files and directories, which covers editor swap files
// and the store's temp files.
func ignored(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
