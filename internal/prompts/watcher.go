//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Source hands out the current catalog. It is safe for concurrent use.
type Source struct {
	current atomic.Pointer[Catalog]
}

// NewSource creates a source serving c, or the built-in catalog if c is
// nil.
func NewSource(c *Catalog) *Source {
	if c == nil {
		c = Default()
	}
	s := &Source{}
	s.current.Store(c)
	return s
}

// Current returns the catalog in effect. Callers should fetch it once per
// request so a reload never mixes texts from two versions.
func (s *Source) Current() *Catalog {
	return s.current.Load()
}

// Replace swaps in a new catalog.
func (s *Source) Replace(c *Catalog) {
	s.current.Store(c)
}

// Watcher reloads a catalog file into a Source whenever it changes on
// disk. A file that fails to parse leaves the previous catalog in place.
type Watcher struct {
	path    string
	source  *Source
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path. The parent directory is watched so
// that editors replacing the file by rename are noticed too.
func NewWatcher(path string, source *Source, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		source:  source,
		logger:  logger,
		watcher: fw,
	}, nil
}

// Run processes file events until ctx is cancelled or the watcher is
// closed. The optional reloaded channel receives one value per applied
// reload.
func (w *Watcher) Run(ctx context.Context, reloaded chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			c, err := Load(w.path)
			if err != nil {
				w.logger.Warn("keeping previous prompts",
					"path", w.path,
					"error", err,
				)
				continue
			}
			w.source.Replace(c)
			w.logger.Info("prompts reloaded", "path", w.path)

			if reloaded != nil {
				select {
				case reloaded <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("prompts watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
