package config

import (
	"os"
	"path/filepath"
	"strings"
)

// appDir is the directory name used under the XDG base directories.
const appDir = "ledger"

// ConfigDir returns where config.yaml and the serving certificate live:
// $XDG_CONFIG_HOME/ledger, falling back to ~/.config/ledger.
func ConfigDir() string {
	return baseDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns where the database and its snapshots live:
// $XDG_DATA_HOME/ledger, falling back to ~/.local/share/ledger.
func DataDir() string {
	return baseDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultDatabasePath returns the database location used when none is configured.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), "ledger.db")
}

// DefaultCertDir returns where the self-signed serving certificate is kept.
func DefaultCertDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// baseDir resolves an XDG base directory. Relative XDG values are ignored,
// as the XDG spec requires. Without a home directory the current directory
// is used.
func baseDir(env, fallback string) string {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appDir
	}
	return filepath.Join(home, fallback, appDir)
}

// ExpandPath resolves $VAR references and a leading ~ in a configured path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
