package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bot configuration
type Config struct {
	Vault   VaultConfig   `json:"vault" yaml:"vault"`
	Rules   RulesConfig   `json:"rules" yaml:"rules"`
	Stream  StreamConfig  `json:"stream" yaml:"stream"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// VaultConfig locates the encrypted credential store
type VaultConfig struct {
	Path    string `json:"path" yaml:"path"`
	Profile string `json:"profile" yaml:"profile"`
}

// RulesConfig locates the rule set
type RulesConfig struct {
	Path string `json:"path" yaml:"path"`
}

// StreamConfig contains stream connection parameters
type StreamConfig struct {
	URL      string  `json:"url,omitempty" yaml:"url,omitempty"`
	Interval float64 `json:"interval" yaml:"interval"` // rate-limit backoff, seconds
	Sleep    float64 `json:"sleep" yaml:"sleep"`       // spacing between orders, seconds
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// BackoffDuration converts the interval to a time.Duration
func (s StreamConfig) BackoffDuration() time.Duration {
	return time.Duration(s.Interval * float64(time.Second))
}

// SleepDuration converts the order spacing to a time.Duration
func (s StreamConfig) SleepDuration() time.Duration {
	return time.Duration(s.Sleep * float64(time.Second))
}

// LoadFromFile loads configuration from a YAML file and applies defaults
// for anything left unset
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyEnv lets the environment (including a .env file loaded at startup)
// override file locations without editing the config file
func (c *Config) applyEnv() {
	if v := os.Getenv("TWEETRADE_VAULT"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("TWEETRADE_PROFILE"); v != "" {
		c.Vault.Profile = v
	}
	if v := os.Getenv("TWEETRADE_RULES"); v != "" {
		c.Rules.Path = v
	}
	if v := os.Getenv("TWEETRADE_JOURNAL_DB"); v != "" {
		c.Journal.DBPath = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("vault.path is required")
	}
	if c.Vault.Profile == "" {
		return fmt.Errorf("vault.profile is required")
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	if c.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be positive")
	}
	if c.Stream.Sleep < 0 {
		return fmt.Errorf("stream.sleep must not be negative")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".tweetrade")
	return &Config{
		Vault: VaultConfig{
			Path:    filepath.Join(base, "vault"),
			Profile: "default",
		},
		Rules: RulesConfig{
			Path: filepath.Join(base, "rules.yaml"),
		},
		Stream: StreamConfig{
			Interval: 905,
			Sleep:    0.5,
		},
		Journal: JournalConfig{
			DBPath: filepath.Join(base, "journal.db"),
		},
	}
}
