package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcpmanager/mcpmanager/internal/store"
)

// StoreEnv overrides the store file location.
const StoreEnv = "MCPMANAGER_STORE"

// DataDir returns the manager data directory: ~/.mcpmanager.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcpmanager"
	}
	return filepath.Join(home, ".mcpmanager")
}

// StorePath returns the store file path: $MCPMANAGER_STORE or
// ~/.mcpmanager/mcp-manager.json.
func StorePath() string {
	if p := os.Getenv(StoreEnv); p != "" {
		return ExpandHome(p)
	}
	return filepath.Join(DataDir(), "mcp-manager.json")
}

// LoadSettings reads the settings from st.
// Fields missing from the stored object keep their default values.
func LoadSettings(st store.Store) (Settings, error) {
	s := DefaultSettings()
	if _, err := st.Get(store.KeySettings, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	def := defaultExternalAppConfig()
	if s.ExternalApp.ProcessName == "" {
		s.ExternalApp.ProcessName = def.ProcessName
	}
	if len(s.ExternalApp.LaunchCommands) == 0 {
		s.ExternalApp.LaunchCommands = def.LaunchCommands
	}
	return s, nil
}

// SaveSettings writes s to st.
func SaveSettings(st store.Store, s Settings) error {
	if err := st.Set(store.KeySettings, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
