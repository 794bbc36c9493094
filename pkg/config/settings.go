package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// settingsFile lazily loads config.json on first access and writes it back
// atomically. A missing file reads as zero settings and is not created
// until something is saved.
type settingsFile struct {
	path   string
	data   Settings
	loaded bool
	dirty  bool
	mu     sync.RWMutex
}

func newSettingsFile(path string) *settingsFile {
	return &settingsFile{path: path}
}

// Get returns a copy of the settings, loading them if needed.
func (f *settingsFile) Get() (Settings, error) {
	f.mu.RLock()
	if f.loaded {
		defer f.mu.RUnlock()
		return f.data, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if f.loaded {
		return f.data, nil
	}
	if err := f.loadLocked(); err != nil {
		return Settings{}, err
	}
	return f.data, nil
}

// Modify runs fn on the loaded settings and marks them dirty.
// The settings are left untouched if fn fails.
func (f *settingsFile) Modify(fn func(*Settings) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		if err := f.loadLocked(); err != nil {
			return err
		}
	}

	next := f.data
	if err := fn(&next); err != nil {
		return err
	}
	f.data = next
	f.dirty = true
	return nil
}

// Save writes the settings if they were modified.
func (f *settingsFile) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty {
		return nil
	}
	if !f.loaded {
		return errors.New("cannot save: settings not loaded")
	}
	return f.saveLocked()
}

// Must be called with write lock held.
func (f *settingsFile) loadLocked() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.data = Settings{}
			f.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse %s: %w", f.path, err)
	}

	f.data = s
	f.loaded = true
	f.dirty = false
	return nil
}

// Must be called with write lock held.
func (f *settingsFile) saveLocked() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	f.dirty = false
	return nil
}
