package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/aktagon/note-writer/internal/logger"
)

// Manager holds the current Settings and swaps in a new snapshot when the
// config file changes.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	settings  *Settings
	callbacks []func(*Settings)
	log       *logger.Logger
}

// NewManager loads the initial settings.
func NewManager(path string, log *logger.Logger) (*Manager, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	s, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, settings: s, log: logger.OrNop(log)}, nil
}

// Get returns the current snapshot.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// OnChange registers fn to run after each successful reload.
func (m *Manager) OnChange(fn func(*Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch enables hot reloading. It is a no-op when no config file was found.
// An invalid edit is logged and the previous snapshot stays in effect.
func (m *Manager) Watch() {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.reload(e.Name)
	})
	m.v.WatchConfig()
	m.log.Info("Watching config file", "path", m.v.ConfigFileUsed())
}

func (m *Manager) reload(name string) {
	s, err := decode(m.v)
	if err != nil {
		m.log.Warn("config reload rejected", "file", name, "error", err)
		return
	}

	m.mu.Lock()
	m.settings = s
	callbacks := make([]func(*Settings), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.log.Info("✓ Config reloaded", "file", name)
	for _, fn := range callbacks {
		fn(s)
	}
}
