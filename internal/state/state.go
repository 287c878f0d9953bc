package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the honeypot lifecycle history kept across process restarts.
type State struct {
	LastStartedAt  time.Time `json:"last_started_at,omitempty"`
	LastStoppedAt  time.Time `json:"last_stopped_at,omitempty"`
	StartCount     int       `json:"start_count"`
	LastStartError string    `json:"last_start_error,omitempty"`
}

// Manager guards the lifecycle history and writes it to a JSON file.
type Manager struct {
	path string

	mu    sync.RWMutex
	state State
}

func NewManager(path string) (*Manager, error) {
	if path == "" {
		return nil, errors.New("state path is empty")
	}
	return &Manager{path: path}, nil
}

func (m *Manager) Load() error {
	b, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	return nil
}

func (m *Manager) Save() error {
	m.mu.RLock()
	b, err := json.MarshalIndent(m.state, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func (m *Manager) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) MarkStarted(at time.Time) {
	m.mu.Lock()
	m.state.LastStartedAt = at.UTC()
	m.state.StartCount++
	m.state.LastStartError = ""
	m.mu.Unlock()
}

func (m *Manager) MarkStopped(at time.Time) {
	m.mu.Lock()
	m.state.LastStoppedAt = at.UTC()
	m.mu.Unlock()
}

func (m *Manager) MarkStartFailed(err error) {
	m.mu.Lock()
	m.state.LastStartError = err.Error()
	m.mu.Unlock()
}
