package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sources reported by ResolveDBPathDetailed.
const (
	dbSourceCLI     = "cli(--db-path)"
	dbSourceEnv     = "env(ANALYTICKET_DB_PATH)"
	dbSourceDefault = "default(~/.config/analyticket/analyticket.db)"
)

// GetDBPath resolves the local cache database path.
// Order of precedence:
// 1) CLI override (--db-path)
// 2) Environment variable: ANALYTICKET_DB_PATH
// 3) config.yaml: db_path
// 4) Default: ~/.config/analyticket/analyticket.db
func GetDBPath() (string, error) {
	path, _, err := ResolveDBPathDetailed()
	return path, err
}

// ResolveDBPathDetailed returns the resolved DB path along with the source of
// that decision, for doctor output. A leading "~/" expands to the home dir.
func ResolveDBPathDetailed() (path string, source string, err error) {
	path, source, err = dbPathCandidate()
	if err != nil {
		return "", "", err
	}
	if path, err = expandHome(path); err != nil {
		return "", "", err
	}
	path, err = EnsureDBDir(path)
	return path, source, err
}

func dbPathCandidate() (string, string, error) {
	if override := getDBPathOverride(); override != "" {
		return override, dbSourceCLI, nil
	}
	if envPath := os.Getenv("ANALYTICKET_DB_PATH"); envPath != "" {
		return envPath, dbSourceEnv, nil
	}

	paths, err := configPaths()
	if err != nil {
		return "", "", fmt.Errorf("resolve config directory: %w", err)
	}
	for _, p := range paths {
		s, loadErr := loadSettingsFile(p)
		switch {
		case loadErr == nil && s.DBPath != "":
			return s.DBPath, fmt.Sprintf("config(%s)", p), nil
		case loadErr == nil, errors.Is(loadErr, os.ErrNotExist):
			continue
		default:
			return "", "", fmt.Errorf("load config %s: %w", p, loadErr)
		}
	}

	configDir, err := ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(configDir, "analyticket.db"), dbSourceDefault, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// EnsureDBDir creates the parent directory of dbPath.
func EnsureDBDir(dbPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	return dbPath, nil
}
