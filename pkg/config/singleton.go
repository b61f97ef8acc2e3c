package config

import (
	"fmt"
	"sync"
)

var (
	// current is the configuration the process runs with. The run command
	// sets it at start and the Watcher replaces it on every valid edit.
	current   *Config
	currentMu sync.RWMutex
)

// GetConfig returns the current configuration, or nil before SetConfig.
func GetConfig() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// SetConfig replaces the current configuration.
func SetConfig(cfg *Config) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = cfg
}

// ReloadConfig loads path with environment overrides and makes it current.
// The current configuration is kept if loading or validation fails.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)
	return nil
}
