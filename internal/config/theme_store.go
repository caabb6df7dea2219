package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/parser"
)

// ThemeStore holds the theme in effect and keeps it in sync with its YAML file.
type ThemeStore struct {
	mu    sync.RWMutex
	path  string
	theme *models.Theme

	watcher *fsnotify.Watcher
	done    chan struct{}
	changed chan struct{}
}

// NewThemeStore loads the theme at path. A missing file means the default theme.
func NewThemeStore(path string) (*ThemeStore, error) {
	s := &ThemeStore{
		path:    path,
		theme:   models.DefaultTheme(),
		changed: make(chan struct{}, 1),
	}
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Theme returns a copy of the current theme.
func (s *ThemeStore) Theme() *models.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := *s.theme
	return &t
}

// Path returns the backing file, if any.
func (s *ThemeStore) Path() string {
	return s.path
}

// Changed signals after each successful reload from disk.
func (s *ThemeStore) Changed() <-chan struct{} {
	return s.changed
}

// Reload re-reads the theme file.
func (s *ThemeStore) Reload() error {
	theme, err := parser.ParseTheme(s.path)
	if err != nil {
		return err
	}
	s.set(theme)
	return nil
}

// Update validates YAML, stores it as the current theme and writes it to disk.
func (s *ThemeStore) Update(data []byte) (*models.Theme, error) {
	theme, err := parser.ParseThemeFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if s.path != "" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return nil, fmt.Errorf("creating theme directory: %w", err)
		}
		if err := os.WriteFile(s.path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing theme: %w", err)
		}
	}
	s.set(theme)
	return s.Theme(), nil
}

func (s *ThemeStore) set(theme *models.Theme) {
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Watch reloads the theme whenever its file is written. The directory is watched
// so editors that replace the file atomically are picked up too.
func (s *ThemeStore) Watch() error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.processEvents()
	return nil
}

func (s *ThemeStore) processEvents() {
	log := logging.For("theme")
	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				log.Warn().Err(err).Str("path", s.path).Msg("theme reload failed, keeping previous theme")
				continue
			}
			log.Info().Str("path", s.path).Msg("theme reloaded")

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("theme watcher error")

		case <-s.done:
			return
		}
	}
}

// Close stops watching.
func (s *ThemeStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}
