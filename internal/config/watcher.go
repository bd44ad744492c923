// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides loading and saving of analyst settings.
package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SETTINGS WATCHER
// =============================================================================

// Watcher reloads the settings file when it changes on disk and
// delivers each validated snapshot on Changes. Consumers still take a
// snapshot per operation; the watcher only keeps that snapshot fresh.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	changes  chan Snapshot
	debounce time.Duration
	logger   *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches the settings file at path. The parent directory is
// watched rather than the file itself, because editors and atomic saves
// replace the file instead of writing through it.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fsw,
		changes:  make(chan Snapshot, 1),
		debounce: 200 * time.Millisecond,
		logger:   log.Default().WithPrefix("config"),
		done:     make(chan struct{}),
	}

	go w.processEvents()
	return w, nil
}

// Changes delivers a snapshot after each settings file change.
// The channel is closed by Close.
func (w *Watcher) Changes() <-chan Snapshot {
	return w.changes
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// processEvents turns raw filesystem events into debounced reloads.
func (w *Watcher) processEvents() {
	defer close(w.changes)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors fire several events per save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			snap, err := LoadFrom(w.path)
			if err != nil {
				w.logger.Warn("settings reload failed", "err", err)
				continue
			}
			// Keep only the freshest snapshot if nobody is reading.
			select {
			case w.changes <- snap:
			default:
				select {
				case <-w.changes:
				default:
				}
				w.changes <- snap
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watch error", "err", err)
		}
	}
}
