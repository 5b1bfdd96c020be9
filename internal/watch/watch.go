// SPDX-License-Identifier: MPL-2.0

// Package watch reports file changes below an archive directory.
//
// Events arriving within the debounce window are collected and handed to the
// change callback as one sorted batch, so an editor's write-and-rename or a
// checkout touching many files triggers a single republish.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is not positive.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("watch: already started")

// defaultIgnores never trigger a callback: VCS metadata, editor scratch files
// and packed archives written next to their sources.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/*.swp",
	"**/*.swx",
	"**/*~",
	"**/.DS_Store",
	"**/*.zip",
}

type (
	// Options configures a Watcher.
	Options struct {
		// Dir is the directory to watch recursively.
		Dir string
		// Ignore holds extra doublestar patterns, matched against slash-separated
		// paths relative to Dir.
		Ignore   []string
		Debounce time.Duration
		Logger   *log.Logger
	}

	// ChangeFunc receives the changed paths relative to the watched directory.
	// An error is logged and does not stop the watcher.
	ChangeFunc func(ctx context.Context, changed []string) error

	// Watcher delivers debounced change batches for one directory tree.
	Watcher struct {
		dir      string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		onChange ChangeFunc
		fsw      *fsnotify.Watcher
		started  atomic.Bool
	}
)

// New registers every non-ignored directory below opts.Dir. The returned
// Watcher owns an fsnotify handle that Run releases; call Close instead when
// Run is never called.
func New(opts Options, onChange ChangeFunc) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: change callback is required")
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pattern)
		}
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", opts.Dir, err)
	}

	w := &Watcher{
		dir:      dir,
		ignores:  append(slices.Clone(defaultIgnores), opts.Ignore...),
		debounce: opts.Debounce,
		logger:   opts.Logger,
		onChange: onChange,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := w.addTree(dir); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers change batches until ctx is done. It returns nil on
// cancellation and an error when the underlying watcher becomes unusable.
// The callback runs on the Run goroutine, so batches never overlap; events
// arriving meanwhile are queued for the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close file watcher", "error", err)
		}
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			rel, relevant := w.relevant(evt.Name)
			if !relevant {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.addNewDir(evt.Name)
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isUnrecoverable(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Debug("files changed", "dir", w.dir, "count", len(changed))
			if err := w.onChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", "error", err)
			}
		}
	}
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	if w.started.Load() {
		return nil
	}
	w.started.Store(true)
	return w.fsw.Close()
}

// Ignored reports whether the slash-separated relative path rel is excluded.
func (w *Watcher) Ignored(rel string) bool {
	for _, pattern := range w.ignores {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, !w.Ignored(rel)
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			w.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			if rel, ok := w.relevant(path); !ok || w.Ignored(rel+"/") {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch: register %s: %w", root, err)
	}
	return nil
}

func (w *Watcher) addNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}
