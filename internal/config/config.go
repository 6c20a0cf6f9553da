// Package config loads gateway settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings of the gateway process.
type Config struct {
	ListenAddr  string      `yaml:"listen_addr"`
	AccountsDir string      `yaml:"accounts_dir"`
	DBPath      string      `yaml:"db_path"`
	APIKey      string      `yaml:"api_key"`
	OAuth       OAuthConfig `yaml:"oauth"`
	Verbose     bool        `yaml:"verbose"`
}

// OAuthConfig overrides the built-in OAuth client when set.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:  ":8000",
		AccountsDir: "accounts",
		DBPath:      "gateway.db",
	}
}

// Load reads the config file if one exists and applies environment
// overrides on top. A missing file is not an error.
func Load() (*Config, error) {
	cfg := defaults()

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/gateway.yaml",
		"./gateway.yaml",
		"/etc/antigravity-gateway/gateway.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, ".config", "antigravity-gateway", "gateway.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GATEWAY_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_ACCOUNTS_DIR")); v != "" {
		cfg.AccountsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("GATEWAY_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")); v != "" {
		cfg.OAuth.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")); v != "" {
		cfg.OAuth.ClientSecret = v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GATEWAY_VERBOSE"))) {
	case "1", "true", "yes":
		cfg.Verbose = true
	}
}
