// ABOUTME: Configuration loading and parsing for the copilot-ui server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete copilot-ui server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Copilot   CopilotConfig   `yaml:"copilot"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
	Uploads   UploadsConfig   `yaml:"uploads"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WorkspaceConfig holds workspace root and model defaults
type WorkspaceConfig struct {
	Root         string `yaml:"root"`
	DefaultModel string `yaml:"default_model"`
}

// CopilotConfig holds agent runtime configuration
type CopilotConfig struct {
	// Command and Args spawn the agent runtime process. The server speaks
	// newline-delimited JSON-RPC to it over stdin/stdout.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	TurnTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TurnTimeoutRaw string `yaml:"turn_timeout"`
}

// AuthConfig holds authentication configuration.
// API auth is enabled iff JWTSecret is non-empty.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// UploadsConfig holds file upload storage configuration
type UploadsConfig struct {
	Dir string `yaml:"dir"`
}

// Defaults applied when the config file is absent or fields are empty.
const (
	DefaultHTTPAddr    = "localhost:3001"
	DefaultModel       = "claude-sonnet-4"
	DefaultTurnTimeout = 5 * time.Minute
	DefaultCommand     = "copilot"
)

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: DefaultHTTPAddr},
		Database: DatabaseConfig{Path: defaultDBPath()},
		Workspace: WorkspaceConfig{
			DefaultModel: DefaultModel,
		},
		Copilot: CopilotConfig{
			Command:     DefaultCommand,
			Args:        []string{"--stdio"},
			TurnTimeout: DefaultTurnTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Copilot.Command == "" {
		return fmt.Errorf("copilot.command is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Copilot.TurnTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Copilot.TurnTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing turn_timeout %q: %w", cfg.Copilot.TurnTimeoutRaw, err)
		}
		cfg.Copilot.TurnTimeout = d
	}
	return nil
}

// defaultDBPath returns the default SQLite database location under the
// user's data directory, falling back to the working directory.
func defaultDBPath() string {
	if envPath := os.Getenv("COPILOT_UI_DB_PATH"); envPath != "" {
		return envPath
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "copilot-ui.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "copilot-ui", "copilot-ui.db")
}

// Path returns the config file location.
// Priority: COPILOT_UI_CONFIG env var > XDG_CONFIG_HOME/copilot-ui/server.yaml > ~/.config/copilot-ui/server.yaml
func Path() string {
	if envPath := os.Getenv("COPILOT_UI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "copilot-ui", "server.yaml")
}
