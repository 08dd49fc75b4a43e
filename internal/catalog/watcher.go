package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Directory names never worth watching.
var ignoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
}

// Watcher monitors the parser directories recursively and feeds
// batched change notifications into the catalog. Editors commonly
// fire several events per save, so events are collected for a short
// debounce window and delivered as one batch. A rename arrives as a
// Rename for the old path plus a Create for the new one; both land
// in the same batch and are handled as independent changes.
type Watcher struct {
	catalog  *Catalog
	fw       *fsnotify.Watcher
	debounce time.Duration
	log      zerolog.Logger

	// OnApplied is invoked after each batch with the changed paths
	// and the parser program paths that left the catalog, so stale
	// diagnostics can be cleared and views refreshed.
	OnApplied func(changed, removed []string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	flush   chan struct{}
}

// NewWatcher creates a watcher over the catalog's directories.
func NewWatcher(catalog *Catalog, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	w := &Watcher{
		catalog:  catalog,
		fw:       fw,
		debounce: debounce,
		log:      log,
		pending:  make(map[string]struct{}),
		flush:    make(chan struct{}, 1),
	}

	for _, dir := range catalog.Dirs() {
		if err := w.addRecursive(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}
		if ignoreDirs[info.Name()] && path != root {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case <-w.flush:
			w.deliver()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New subdirectories join the watch set.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !ignoreDirs[info.Name()] {
				_ = w.addRecursive(path)
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, func() {
			select {
			case w.flush <- struct{}{}:
			default:
			}
		})
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

func (w *Watcher) deliver() {
	w.mu.Lock()
	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		batch = append(batch, path)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	w.log.Debug().Strs("paths", batch).Msg("applying file changes")
	removed := w.catalog.UpdateIfParserFile(batch)
	if w.OnApplied != nil {
		w.OnApplied(batch, removed)
	}
}
