package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable override, e.g. GHLINK_PRIVATE_KEY_PATH
	EnvPrefix = "GHLINK"

	defaultDatabasePath = "github_links.db"
	defaultHTTPTimeout  = "30s"
)

// Config represents the application configuration
type Config struct {
	// GitHub App id used as the JWT issuer
	AppID int64 `json:"app_id" mapstructure:"app_id"`

	// Path to the GitHub App PEM private key
	PrivateKeyPath string `json:"private_key_path" mapstructure:"private_key_path"`

	// External id of the app installation to act for
	InstallationID string `json:"installation_id" mapstructure:"installation_id"`

	// Host-side organization and integration the links belong to
	OrganizationID int64 `json:"organization_id" mapstructure:"organization_id"`
	IntegrationID  int64 `json:"integration_id" mapstructure:"integration_id"`

	// REST API root and web root, for GitHub Enterprise
	APIBaseURL string `json:"api_base_url" mapstructure:"api_base_url"`
	WebBaseURL string `json:"web_base_url" mapstructure:"web_base_url"`

	// GraphQL endpoint; derived from api_base_url when empty
	GraphQLURL string `json:"graphql_url" mapstructure:"graphql_url"`

	// Path to the SQLite link ledger
	DatabasePath string `json:"database_path" mapstructure:"database_path"`

	// Per-request HTTP timeout, e.g. "30s"
	HTTPTimeout string `json:"http_timeout" mapstructure:"http_timeout"`

	LogLevel  string `json:"log_level" mapstructure:"log_level"`
	LogFormat string `json:"log_format" mapstructure:"log_format"`
}

// LoadConfig loads the configuration from a JSON file, then applies
// GHLINK_* overrides from the environment and a .env file next to it.
func LoadConfig(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv applies during Unmarshal
	v.SetDefault("app_id", 0)
	v.SetDefault("private_key_path", "")
	v.SetDefault("installation_id", "")
	v.SetDefault("organization_id", 0)
	v.SetDefault("integration_id", 0)
	v.SetDefault("api_base_url", "https://api.github.com/")
	v.SetDefault("web_base_url", "https://github.com")
	v.SetDefault("graphql_url", "")
	v.SetDefault("database_path", defaultDatabasePath)
	v.SetDefault("http_timeout", defaultHTTPTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Relative paths are resolved against the config file's directory
	configDir := filepath.Dir(path)
	if !filepath.IsAbs(config.DatabasePath) {
		config.DatabasePath = filepath.Join(configDir, config.DatabasePath)
	}
	if config.PrivateKeyPath != "" && !filepath.IsAbs(config.PrivateKeyPath) {
		config.PrivateKeyPath = filepath.Join(configDir, config.PrivateKeyPath)
	}

	return &config, nil
}

// Timeout returns the parsed HTTP timeout
func (c *Config) Timeout() (time.Duration, error) {
	if c.HTTPTimeout == "" {
		return time.ParseDuration(defaultHTTPTimeout)
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid http_timeout %q: %w", c.HTTPTimeout, err)
	}
	return d, nil
}

// Validate checks that the settings needed to talk to GitHub are present
func (c *Config) Validate() error {
	var missing []string
	if c.AppID == 0 {
		missing = append(missing, "app_id")
	}
	if c.PrivateKeyPath == "" {
		missing = append(missing, "private_key_path")
	}
	if c.InstallationID == "" {
		missing = append(missing, "installation_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := &Config{
		PrivateKeyPath: "github-app.pem",
		APIBaseURL:     "https://api.github.com/",
		WebBaseURL:     "https://github.com",
		DatabasePath:   defaultDatabasePath,
		HTTPTimeout:    defaultHTTPTimeout,
		LogLevel:       "info",
		LogFormat:      "text",
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(config, path)
}
