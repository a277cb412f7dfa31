package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns $XDG_CONFIG_HOME/qzlogin/config.yaml or the
// platform equivalent.
//
// Note: this function does not create directories or files.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "qzlogin", "config.yaml"), nil
}
