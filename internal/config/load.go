package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Loaded captures the resolved config path, parsed values, and non-fatal
// warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, validates, and applies environment
// overrides to the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	loaded := Loaded{Path: resolvedPath, Exists: true}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		meta, decodeErr := toml.Decode(string(content), &cfg)
		if decodeErr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, decodeErr)
		}
		for _, key := range meta.Undecoded() {
			loaded.Warnings = append(loaded.Warnings, Warning{
				Message: fmt.Sprintf("unknown config key %q ignored", key.String()),
			})
		}
	}

	loadDotEnv(resolvedPath)
	applyEnvOverrides(&cfg)

	warnings := Validate(&cfg)
	loaded.Config = cfg
	loaded.Warnings = append(loaded.Warnings, warnings...)
	return loaded, nil
}

// loadDotEnv loads a .env next to the config file, then one in the working
// directory. Existing process env always wins.
func loadDotEnv(configPath string) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	_ = godotenv.Load()
}

// applyEnvOverrides layers CONFAB_* variables over the file values.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CONFAB_STREAM_ENDPOINT")); v != "" {
		cfg.Backend.StreamEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFAB_HTTP_ENDPOINT")); v != "" {
		cfg.Backend.HTTPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFAB_AUTH_TOKEN")); v != "" {
		cfg.Backend.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFAB_LANGUAGE")); v != "" {
		cfg.Session.Language = v
	}
}
