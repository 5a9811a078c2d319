package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CLIConfig holds CLI configuration persisted to disk.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	// Email is remembered from the last password login.
	Email string `yaml:"email,omitempty"`
}

// configPath returns the path to the CLI config file. HM_CONFIG overrides
// the default location.
func configPath() (string, error) {
	if v := os.Getenv("HM_CONFIG"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hm", "config.yaml"), nil
}

// loadConfig reads the CLI config from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI config to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

const defaultServerURL = "http://localhost:8080"

// connection is where API calls go and which key they carry. Environment
// variables win over the config file.
type connection struct {
	ServerURL string
	APIKey    string
	KeySource string // "env", "config", or "" when no key is set
}

// resolveConnection merges HM_SERVER_URL and HM_API_KEY with the config
// file. A missing or unreadable file counts as empty.
func resolveConnection() connection {
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	conn := connection{ServerURL: defaultServerURL}
	switch {
	case os.Getenv("HM_SERVER_URL") != "":
		conn.ServerURL = os.Getenv("HM_SERVER_URL")
	case cfg.ServerURL != "":
		conn.ServerURL = cfg.ServerURL
	}
	conn.ServerURL = strings.TrimRight(conn.ServerURL, "/")

	switch {
	case os.Getenv("HM_API_KEY") != "":
		conn.APIKey, conn.KeySource = os.Getenv("HM_API_KEY"), "env"
	case cfg.APIKey != "":
		conn.APIKey, conn.KeySource = cfg.APIKey, "config"
	}
	return conn
}
