package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store holds the active configuration and swaps it when the file changes.
// Readers take a Snapshot at the start of each paste invocation.
type Store struct {
	path    string
	current atomic.Pointer[Config]
}

// NewStore wraps an already loaded configuration.
func NewStore(path string, cfg *Config) *Store {
	s := &Store{path: path}
	s.current.Store(cfg)
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a private copy of the active configuration.
func (s *Store) Snapshot() Config {
	return s.current.Load().Clone()
}

// Replace installs cfg as the active configuration.
func (s *Store) Replace(cfg *Config) {
	s.current.Store(cfg)
}

// Reload re-reads the file. The active configuration is kept when the file is invalid.
func (s *Store) Reload() error {
	cfg, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// Watch reloads the configuration whenever the file is written, until ctx is done.
// The directory is watched rather than the file so that editors replacing the
// file atomically are picked up too.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()

		// Editors tend to emit several events per save
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(s.path) {
					continue
				}
				if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
					debounce = time.After(200 * time.Millisecond)
				}

			case <-debounce:
				debounce = nil
				if err := s.Reload(); err != nil {
					slog.Warn("Ignoring invalid config change", "path", s.path, "error", err)
					continue
				}
				slog.Info("Configuration reloaded", "path", s.path)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}
