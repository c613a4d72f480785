package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPaths are the locations fwatch uses when the environment does not
// say otherwise.
type DefaultPaths struct {
	ConfigFile string // FWATCH_CONFIG_PATH, or ~/.config/fwatch.toml
	DataDir    string // FWATCH_HOME, or ~/.local/share/fwatch
}

// DefaultLocations resolves the config file and data directory. Environment
// overrides win; the home directory is only consulted for whatever the
// environment leaves unset.
func DefaultLocations() (DefaultPaths, error) {
	p := DefaultPaths{
		ConfigFile: os.Getenv("FWATCH_CONFIG_PATH"),
		DataDir:    os.Getenv("FWATCH_HOME"),
	}
	if p.ConfigFile != "" && p.DataDir != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultPaths{}, fmt.Errorf("resolving home directory: %w", err)
	}
	if p.ConfigFile == "" {
		p.ConfigFile = filepath.Join(home, ".config", "fwatch.toml")
	}
	if p.DataDir == "" {
		p.DataDir = filepath.Join(home, ".local", "share", "fwatch")
	}
	return p, nil
}
