// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fswatcher implements bridge.FileWatcher over fsnotify, debounced
// with a single coalescing timer the way cmd/cie/watch.go debounces a
// reindex trigger.
package fswatcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/viant/cgraph/pkg/bridge"
)

// skipDirs names directories never worth watching — noise and descriptor
// cost, matching the teacher's watchSkipDirs set.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "bin": true,
}

// Options configures debounce interval and root directory.
type Options struct {
	Root     string
	Debounce time.Duration
}

// DefaultDebounce matches the teacher's watchDebounce constant.
const DefaultDebounce = 2 * time.Second

// Watcher adapts fsnotify to bridge.FileWatcher.
type Watcher struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Watcher rooted at opts.Root.
func New(opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{opts: opts, logger: logger}
}

// Watch implements bridge.FileWatcher: it adds every non-skipped directory
// under Root recursively, then emits one coalesced FileChangeEvent per
// debounce window per distinct path, closing both channels when ctx is
// cancelled or the underlying watcher fails to start.
func (w *Watcher) Watch(ctx context.Context) (<-chan bridge.FileChangeEvent, <-chan error) {
	events := make(chan bridge.FileChangeEvent)
	errs := make(chan error, 1)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		errs <- err
		close(events)
		close(errs)
		return events, errs
	}

	if addErr := w.addDirs(fsw, w.opts.Root); addErr != nil {
		errs <- addErr
	}

	go w.run(ctx, fsw, events, errs)
	return events, errs
}

func (w *Watcher) addDirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(root)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("fswatcher: add directory failed", "path", path, "error", err)
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, events chan<- bridge.FileChangeEvent, errs chan<- error) {
	defer fsw.Close()
	defer close(events)
	defer close(errs)

	pending := map[string]bridge.FileChangeKind{}
	var timer *time.Timer
	var timerCh <-chan time.Time

	flush := func() {
		for path, kind := range pending {
			select {
			case events <- bridge.FileChangeEvent{Kind: kind, FilePath: path, ObservedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
		pending = map[string]bridge.FileChangeKind{}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			kind, handled := translateOp(ev.Op)
			if !handled {
				continue
			}
			pending[ev.Name] = kind
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			timerCh = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			default:
				w.logger.Warn("fswatcher: dropped error, channel full", "error", err)
			}
		case <-timerCh:
			timerCh = nil
			flush()
		}
	}
}

func translateOp(op fsnotify.Op) (bridge.FileChangeKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return bridge.FileCreated, true
	case op&fsnotify.Write != 0:
		return bridge.FileModified, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return bridge.FileDeleted, true
	default:
		return "", false
	}
}
