package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Environment variables that override file values.
const (
	EnvAPIBaseURL = "PROCTOR_API_BASE_URL"
	EnvLogLevel   = "PROCTOR_LOG_LEVEL"
	EnvUILanguage = "PROCTOR_UI_LANGUAGE"
)

// Load resolves the config path, parses the file over Default, and applies
// PROCTOR_* environment overrides. A missing file yields defaults plus a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	cfg, applied := applyEnv(loaded.Config)
	if len(applied) == 0 {
		return loaded, nil
	}
	if _, err := Validate(cfg); err != nil {
		return Loaded{}, fmt.Errorf("apply %s: %w", strings.Join(applied, ", "), err)
	}
	loaded.Config = cfg
	return loaded, nil
}

// applyEnv returns cfg with non-empty overrides applied and the names of the
// variables that took effect.
func applyEnv(cfg Config) (Config, []string) {
	var applied []string
	for _, override := range []struct {
		name string
		dst  *string
	}{
		{EnvAPIBaseURL, &cfg.API.BaseURL},
		{EnvLogLevel, &cfg.Log.Level},
		{EnvUILanguage, &cfg.UI.Language},
	} {
		if value := strings.TrimSpace(os.Getenv(override.name)); value != "" {
			*override.dst = value
			applied = append(applied, override.name)
		}
	}
	return cfg, applied
}
