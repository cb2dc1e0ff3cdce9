// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs selection when the project tree changes.
//
// A recursive fsnotify watcher covers the project root with the same
// directory exclusions the scanner uses. Events for source files and
// trigger-all files accumulate in a pending set; after the debounce
// window passes with no further events, the batch is handed to the
// callback. A rate limiter puts a floor between callback invocations
// so editor save storms cannot stack selection runs.
//
// Each callback invocation is expected to build a fresh graph — the
// watcher only supplies changed paths, never analysis state.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/changes"
)

const (
	// DefaultDebounce is how long the tree must be quiet before a
	// batch is delivered.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultMinInterval is the floor between callback invocations.
	DefaultMinInterval = 2 * time.Second
)

// Config configures a Watcher.
type Config struct {
	// Root is the project root to watch.
	Root string

	// ExcludeDirs are directory names pruned from the watch, matching
	// the scanner's exclusions.
	ExcludeDirs []string

	// Extensions are the source file extensions that qualify as
	// changes (".py").
	Extensions []string

	// TriggerAll are glob patterns for files that qualify as changes
	// even without a source extension ("requirements*.txt").
	TriggerAll []string

	// Debounce is the quiet period before a batch is delivered.
	// Default: DefaultDebounce.
	Debounce time.Duration

	// MinInterval is the minimum time between callback invocations.
	// <= 0 disables the floor.
	MinInterval time.Duration
}

// Callback receives one debounced batch of changed files,
// root-relative and sorted.
type Callback func(ctx context.Context, changed []string)

// Watcher delivers debounced change batches for a project tree.
//
// # Thread Safety
//
// Start should be called once; the callback runs on the Start
// goroutine, so invocations never overlap.
type Watcher struct {
	cfg      Config
	filter   *changes.Filter
	watcher  *fsnotify.Watcher
	callback Callback
	limiter  *rate.Limiter
	log      *logging.Logger

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	flushCh chan struct{}

	excluded map[string]bool
}

// New creates a Watcher over cfg.Root.
func New(cfg Config, callback Callback, log *logging.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, ErrInvalidRoot
	}
	if callback == nil {
		return nil, ErrNilCallback
	}
	if log == nil {
		log = logging.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	excluded := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, d := range cfg.ExcludeDirs {
		excluded[d] = true
	}

	return &Watcher{
		cfg:      cfg,
		filter:   changes.NewFilter(cfg.Extensions, cfg.TriggerAll),
		watcher:  fsw,
		callback: callback,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		pending:  make(map[string]bool),
		flushCh:  make(chan struct{}, 1),
		excluded: excluded,
	}, nil
}

// Start watches the tree and blocks until the context is cancelled.
//
// Should be run on its own goroutine when the caller has other work:
//
//	w, _ := watch.New(cfg, onChange, log)
//	go w.Start(ctx)
func (w *Watcher) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := w.addDirTree(w.cfg.Root); err != nil {
		return fmt.Errorf("watching %s: %w", w.cfg.Root, err)
	}

	w.log.Info("watching for changes",
		"root", w.cfg.Root,
		"debounce", w.cfg.Debounce)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-w.flushCh:
			batch := w.takePending()
			if len(batch) == 0 {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return nil // context cancelled while pacing
			}
			w.callback(ctx, batch)

		case <-ctx.Done():
			w.log.Info("watcher stopping")
			return nil
		}
	}
}

// Stop stops the watcher. Safe to call while Start is running; Start
// returns once the event channel closes.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// handleEvent classifies one fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	if event.Op&relevant == 0 {
		return
	}

	// New directories join the watch so files created inside them
	// are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.excluded[filepath.Base(event.Name)] {
				if err := w.addDirTree(event.Name); err != nil {
					w.log.Warn("failed to watch new directory",
						"path", event.Name,
						"error", err)
				}
			}
			return
		}
	}

	rel, ok := w.qualifies(event.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = true
	if w.timer == nil {
		w.timer = time.AfterFunc(w.cfg.Debounce, w.signalFlush)
	} else {
		w.timer.Reset(w.cfg.Debounce)
	}
}

func (w *Watcher) signalFlush() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

// takePending swaps out the pending set and returns it sorted.
func (w *Watcher) takePending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	sort.Strings(batch)
	return batch
}

// qualifies maps an absolute event path to a root-relative slash path
// and reports whether it is a source or trigger-all file. The check is
// lexical so deleted files still qualify.
func (w *Watcher) qualifies(name string) (string, bool) {
	rel, err := filepath.Rel(w.cfg.Root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	res := w.filter.Apply([]string{rel})
	if len(res.Seeds) == 0 && !res.TriggerAll {
		return "", false
	}
	return rel, true
}

// addDirTree registers dir and every non-excluded subdirectory.
func (w *Watcher) addDirTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Unreadable subtrees are skipped, same as the scanner.
			w.log.Warn("skipping unwatchable path", "path", path, "error", err)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.excluded[d.Name()] {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
