package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file. It is used even when the
	// file is missing, so a typo fails loudly instead of falling back.
	EnvConfigPath = "CLANSTORE_CONFIG"

	// ConfigFileName is the file looked for in every search directory
	ConfigFileName = "clanstore.yaml"
)

// searchDirs lists the directories checked for ConfigFileName, highest
// priority first: the working directory, ./config for container mounts, then
// the per-user and system config directories.
func searchDirs() []string {
	dirs := []string{".", "config"}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "clanstore"))
	}
	return append(dirs, "/etc/clanstore")
}

// FindConfigPath returns $CLANSTORE_CONFIG when set, otherwise the first
// existing ConfigFileName in searchDirs, or "" when there is none
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	for _, dir := range searchDirs() {
		path := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
