// Package watch re-lints artifacts as they change on disk. It recursively
// watches a directory, filters by the configured extensions and excluded
// directories, and debounces bursts of events from editors.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
)

const debounceInterval = 100 * time.Millisecond

// Watcher wraps an fsnotify watcher.
type Watcher struct {
	fw         *fsnotify.Watcher
	logger     *zap.Logger
	excluded   map[string]bool
	extensions map[string]bool
	root       string
	filter     func(path string) bool
	done       chan struct{}
	stopped    bool
	mu         sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter adds a predicate every changed file must also pass, such as
// the scanner's own file selection.
func WithFilter(filter func(path string) bool) Option {
	return func(w *Watcher) {
		w.filter = filter
	}
}

// New creates a watcher filtering with cfg's extensions and excluded dirs.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:         fw,
		logger:     logger,
		excluded:   make(map[string]bool),
		extensions: make(map[string]bool),
		done:       make(chan struct{}),
	}
	for _, dir := range append(append([]string{}, cfg.ExcludedDirs...), cfg.Rules.ExcludedDirs...) {
		w.excluded[filepath.Clean(dir)] = true
	}
	for _, ext := range cfg.Rules.FileExtensions {
		w.extensions[strings.ToLower(ext)] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts monitoring root recursively. onChange receives the path of
// each written or created artifact; removals are not reported.
func (w *Watcher) Watch(root string, onChange func(path string)) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.root = absPath

	err = filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != absPath && w.excluded[info.Name()] {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debounce := make(map[string]time.Time)

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				path := event.Name

				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(path); err == nil && info.IsDir() {
						if !w.excluded[info.Name()] {
							if err := w.fw.Add(path); err != nil {
								w.logger.Warn("Failed to watch directory", zap.String("dir", path), zap.Error(err))
							}
						}
						continue
					}
				}

				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !w.Relevant(path) {
					continue
				}

				now := time.Now()
				if last, seen := debounce[path]; seen && now.Sub(last) < debounceInterval {
					continue
				}
				debounce[path] = now

				w.logger.Debug("File changed", zap.String("file", path), zap.String("op", event.Op.String()))
				onChange(path)

			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Watcher error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Relevant reports whether a changed path should be re-linted. Excluded
// directories are matched below the watched root only. A configured
// filter has the final say.
func (w *Watcher) Relevant(path string) bool {
	if !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	dir := filepath.Dir(path)
	if w.root != "" {
		if rel, err := filepath.Rel(w.root, dir); err == nil {
			dir = rel
		}
	}
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		if w.excluded[part] {
			return false
		}
	}
	return w.filter == nil || w.filter(path)
}

// Stop ends monitoring. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}
