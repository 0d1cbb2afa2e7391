package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultIdentityBaseURL = "https://api.descope.com"
	DefaultAPIURL          = "http://localhost:8080"

	clientDirName  = ".todoapp"
	clientFileName = "config.toml"
)

// ClientConfig holds what the terminal client needs. Values come from an
// optional TOML file and are overridden by environment variables.
type ClientConfig struct {
	APIURL            string `toml:"api_url"`
	DatastoreURL      string `toml:"datastore_url"`
	DatastoreAnonKey  string `toml:"datastore_anon_key"`
	IdentityProjectID string `toml:"identity_project_id"`
	IdentityBaseURL   string `toml:"identity_base_url"`
}

// ClientDir returns the per-user directory holding config and credentials.
func ClientDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, clientDirName), nil
}

// DefaultClientConfigPath returns ~/.todoapp/config.toml.
func DefaultClientConfigPath() (string, error) {
	dir, err := ClientDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, clientFileName), nil
}

// LoadClient reads the TOML file at path (a missing file is not an error)
// and applies environment overrides.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse client config %s: %w", path, err)
		}
	}

	cfg.APIURL = getEnv("TODO_API_URL", cfg.APIURL)
	cfg.DatastoreURL = getEnv("SUPABASE_URL", cfg.DatastoreURL)
	cfg.DatastoreAnonKey = getEnv("SUPABASE_ANON_KEY", cfg.DatastoreAnonKey)
	cfg.IdentityProjectID = getEnv("DESCOPE_PROJECT_ID", cfg.IdentityProjectID)
	cfg.IdentityBaseURL = getEnv("DESCOPE_BASE_URL", cfg.IdentityBaseURL)

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.IdentityBaseURL == "" {
		cfg.IdentityBaseURL = DefaultIdentityBaseURL
	}

	return cfg, nil
}
