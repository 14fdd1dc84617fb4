// Copyright 2025 Kadir Pekel
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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileProvider loads config from a local file and watches its directory
// for changes (watching the file directly misses editors that replace it
// via rename-on-save).
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider builds a provider reading from a local file.
func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &FileProvider{path: abs}, nil
}

func (p *FileProvider) Type() Type { return TypeFile }

func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", p.path, err)
	}
	return data, nil
}

func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	p.watcher = watcher

	dir := filepath.Dir(p.path)
	file := filepath.Base(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, file, ch)
	slog.Info("watching config file", "path", p.path)
	return ch, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, file string, ch chan<- struct{}) {
	defer close(ch)
	defer watcher.Close()

	var debounce *time.Timer
	const delay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(delay, func() {
					select {
					case ch <- struct{}{}:
					default:
					}
				})
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Editors and ConfigMap mounts commonly replace a file via
				// rename-on-save or an atomic symlink swap, which fires
				// Remove/Rename on the old inode and drops it from the
				// watch. A daemon runs unattended, so unlike an
				// interactively-supervised CLI watch it must keep trying
				// to reattach rather than give up after a few attempts.
				slog.Warn("config file removed or renamed, awaiting its return", "path", p.path)
				go p.rewatch(ctx, watcher, ch)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// rewatch polls for the config path to reappear and re-adds the directory
// watch once it does, signalling a reload. It retries indefinitely with a
// capped backoff until ctx is cancelled, since nothing else will notice a
// daemon that silently stopped watching its config file.
func (p *FileProvider) rewatch(ctx context.Context, watcher *fsnotify.Watcher, ch chan<- struct{}) {
	delay := 250 * time.Millisecond
	const maxDelay = 5 * time.Second
	dir := filepath.Dir(p.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if _, err := os.Stat(p.path); err != nil {
			if delay < maxDelay {
				delay *= 2
				if delay > maxDelay {
					delay = maxDelay
				}
			}
			continue
		}
		if err := watcher.Add(dir); err != nil {
			continue
		}
		slog.Info("config file reappeared, watch re-established", "path", p.path)
		select {
		case ch <- struct{}{}:
		default:
		}
		return
	}
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

var _ Provider = (*FileProvider)(nil)
