package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig names a config file when --config is not given.
const EnvConfig = "PROCTOR_CONFIG"

// ResolvePath picks the config file: the --config value, then $PROCTOR_CONFIG,
// then $XDG_CONFIG_HOME/proctor/config.jsonc, then ~/.config/proctor/config.jsonc.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfig)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate, nil
		}
	}

	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("unable to resolve user home for config fallback")
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "proctor", "config.jsonc"), nil
}
