package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath returns the config file location: the explicit path when
// given, otherwise $XDG_CONFIG_HOME/confab/config.toml with a ~/.config
// fallback.
func ResolvePath(explicit string) (string, error) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "confab", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "confab", "config.toml"), nil
}
