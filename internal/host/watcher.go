// Copyright 2025 Edwin Ortega
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package host

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the host configuration file and reconciles the manager
// when it changes: new servers are registered and connected, removed servers
// are disconnected, and servers whose descriptor changed are reconnected.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	// manager is reconciled against the reloaded configuration
	manager *Manager

	// path is the watched configuration file
	path string

	// logger is used for structured logging
	logger *slog.Logger

	// debounceDelay coalesces bursts of write events into one reload
	debounceDelay time.Duration

	// pending is the outstanding debounced reload timer, if any
	pending *time.Timer

	// mu protects pending
	mu sync.Mutex

	// ctx is the watcher's lifecycle context
	ctx context.Context

	// cancel stops the watcher
	cancel context.CancelFunc

	// wg tracks the event loop goroutine
	wg sync.WaitGroup
}

// WatcherConfig configures the configuration file watcher.
type WatcherConfig struct {
	// Manager is reconciled when the file changes
	Manager *Manager

	// Path is the configuration file to watch
	Path string

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay coalesces write bursts (defaults to 200ms)
	DebounceDelay time.Duration
}

// NewWatcher creates a watcher on the configuration file. Many editors
// replace files on save, so the parent directory is watched and events are
// filtered by name.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:     fsWatcher,
		manager:       cfg.Manager,
		path:          absPath,
		logger:        logger,
		debounceDelay: debounceDelay,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// processEvents filters filesystem events down to the watched file and
// schedules debounced reloads.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != w.path {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload re-reads the configuration and reconciles the manager against it.
// A file that fails to parse leaves the running state untouched.
func (w *Watcher) reload() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed", "path", w.path, "error", err)
		return
	}
	want, err := cfg.Descriptors()
	if err != nil {
		w.logger.Error("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.logger.Info("config file changed, reconciling", "path", w.path, "servers", len(want))

	have := make(map[string]ServerDescriptor)
	for _, d := range w.manager.Descriptors() {
		have[d.Name] = d
	}

	wanted := make(map[string]bool)
	for _, d := range want {
		wanted[d.Name] = true

		old, exists := have[d.Name]
		if exists && reflect.DeepEqual(old, d) {
			continue
		}
		if exists {
			if err := w.manager.Remove(d.Name); err != nil {
				w.logger.Error("failed to replace server", "server", d.Name, "error", err)
				continue
			}
		}
		if err := w.manager.Register(d); err != nil {
			w.logger.Error("failed to register server", "server", d.Name, "error", err)
			continue
		}
		if d.Enabled {
			if err := w.manager.Connect(w.ctx, d.Name); err != nil {
				w.logger.Error("failed to connect server", "server", d.Name, "error", err)
			}
		}
	}

	for name := range have {
		if !wanted[name] {
			if err := w.manager.Remove(name); err != nil {
				w.logger.Error("failed to remove server", "server", name, "error", err)
			}
		}
	}
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsWatcher.Close()
}
