package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Manager owns the on-disk configuration file and fans out hot-reload
// notifications to registered listeners.
type Manager struct {
	path string

	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
}

// NewManager loads the configuration at path, writing the defaults first if
// the file does not exist. An unreadable or malformed file is an error; the
// loader owns validity, downstream components assume checked values.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		m.cfg = Default()
		if err := m.save(); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		log.Printf("config: created %s with defaults", path)
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Start from defaults so fields absent from the file keep sane values.
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	m.cfg = cfg
	return m, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Update replaces the configuration, persists it, and notifies listeners.
func (m *Manager) Update(cfg Config) error {
	m.mu.Lock()
	m.cfg = cfg
	err := m.save()
	listeners := make([]func(Config), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if err != nil {
		return err
	}

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnChange registers a listener invoked after every successful Update.
// Listeners run on the updater's goroutine.
func (m *Manager) OnChange(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// save writes the current config. Caller holds m.mu.
func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
