package camera

import (
	"fmt"
	"maps"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manager holds the current camera configuration and applies changes to the
// capture device.
type Manager struct {
	mu     sync.Mutex
	config Config

	// OnConfigChange applies a new config to the webcam. A non-nil error
	// keeps the previous config.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetConfig validates cfg and applies it. Setting the current config again is
// a no-op, so the device is not reopened.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %v", errs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg == m.config {
		return nil
	}
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("apply camera config: %w", err)
		}
	}
	m.config = cfg
	return nil
}

// UpdateConfig applies a partial update. params holds JSON field names; a
// "preset" key replaces the base config before the other fields apply.
// params is not modified.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()
	params = maps.Clone(params)

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
		delete(params, "preset")
	}

	if len(params) > 0 {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode update: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("invalid update: %w", err)
		}
	}

	return m.SetConfig(cfg)
}
