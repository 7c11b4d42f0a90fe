// Package config defines the manager's settings and well-known paths.
//
// Settings are stored under the store's "settings" key as
// {"claudeConfigPath": ..., "backupsEnabled": ..., "externalApp": {...}}.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ExternalAppConfig describes how the desktop application is found and started.
// ManagerProcessName names other manager instances to close before a
// restart; empty means the name of the running binary.
type ExternalAppConfig struct {
	ProcessName        string     `json:"processName"`
	ManagerProcessName string     `json:"managerProcessName,omitempty"`
	LaunchCommands     [][]string `json:"launchCommands"`
}

func defaultExternalAppConfig() ExternalAppConfig {
	cfg := ExternalAppConfig{
		ProcessName: "Claude",
	}
	switch runtime.GOOS {
	case "darwin":
		cfg.LaunchCommands = [][]string{
			{"open", "-a", "Claude"},
			{"open", "/Applications/Claude.app"},
		}
	case "windows":
		cfg.ProcessName = "Claude.exe"
		cfg.LaunchCommands = [][]string{
			{"cmd", "/c", "start", "", "Claude"},
		}
	default:
		cfg.ProcessName = "claude-desktop"
		cfg.LaunchCommands = [][]string{
			{"claude-desktop"},
		}
	}
	return cfg
}

// Settings are the user-editable manager settings.
type Settings struct {
	ConfigFilePath string            `json:"claudeConfigPath"`
	BackupsEnabled bool              `json:"backupsEnabled"`
	ExternalApp    ExternalAppConfig `json:"externalApp"`
}

// DefaultSettings returns Settings populated with all default values.
func DefaultSettings() Settings {
	return Settings{
		ConfigFilePath: DefaultClaudeConfigPath(),
		BackupsEnabled: true,
		ExternalApp:    defaultExternalAppConfig(),
	}
}

// ConfigPath returns the expanded external config path.
func (s *Settings) ConfigPath() string {
	p := s.ConfigFilePath
	if p == "" {
		p = DefaultClaudeConfigPath()
	}
	return ExpandHome(p)
}

// DefaultClaudeConfigPath returns where Claude Desktop keeps its config on this OS.
func DefaultClaudeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Claude", "claude_desktop_config.json")
		}
		return filepath.Join(home, "AppData", "Roaming", "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
