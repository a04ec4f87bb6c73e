// Package config loads and persists Parley's configuration from the XDG
// user directory, an optional project .parley.yaml, and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Parley.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Store     StoreConfig     `mapstructure:"store"`
	Intents   IntentsConfig   `mapstructure:"intents"`
}

// AnthropicConfig holds completion-service settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes requests through AWS Bedrock instead of the
	// Anthropic API.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SchedulerConfig holds batch execution settings.
type SchedulerConfig struct {
	// Concurrency bounds simultaneous capability invocations per batch.
	Concurrency int `mapstructure:"concurrency"`
	// TaskTimeout is the per-invocation deadline.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// ResolverConfig holds intent resolution settings.
type ResolverConfig struct {
	// ConfidenceThreshold gates acting on a resolved intent.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// EscalateValidationFailures sends schema validation failures from the
	// structured tier to the guided-prompt tier instead of straight to rules.
	EscalateValidationFailures bool `mapstructure:"escalate_validation_failures"`
	// HistoryDepth is how many prior user messages the resolver sees.
	HistoryDepth int `mapstructure:"history_depth"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database path. Empty means the default data dir.
	Path string `mapstructure:"path"`
	// SeedDemoData populates the metrics warehouse on startup if empty.
	SeedDemoData bool `mapstructure:"seed_demo_data"`
}

// IntentsConfig holds intent catalog settings.
type IntentsConfig struct {
	// OverlayPath is an optional YAML overlay extending the built-in
	// catalog with extra keywords, examples, or capability mappings.
	OverlayPath string `mapstructure:"overlay_path"`
}

// Load resolves the effective configuration. Later sources win: built-in
// defaults, then the user config (~/.config/parley/config.yaml), then a
// project .parley.yaml found in the working directory or a parent, then
// environment variables (ANTHROPIC_API_KEY and the PARLEY_* set).
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PARLEY")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "PARLEY_MODEL")
	v.BindEnv("anthropic.use_aws_bedrock", "PARLEY_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("anthropic.aws_profile", "AWS_PROFILE")
	v.BindEnv("server.addr", "PARLEY_ADDR")
	v.BindEnv("store.path", "PARLEY_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath reads one specific config file over the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save persists cfg to the user config file, creating it if absent.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("scheduler.concurrency", cfg.Scheduler.Concurrency)
	v.Set("scheduler.task_timeout", cfg.Scheduler.TaskTimeout.String())
	v.Set("resolver.confidence_threshold", cfg.Resolver.ConfidenceThreshold)
	v.Set("resolver.escalate_validation_failures", cfg.Resolver.EscalateValidationFailures)
	v.Set("resolver.history_depth", cfg.Resolver.HistoryDepth)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.seed_demo_data", cfg.Store.SeedDemoData)
	v.Set("intents.overlay_path", cfg.Intents.OverlayPath)

	return v.WriteConfig()
}

// GetUserConfigPath is where Save writes.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath reports the project override in effect, if any.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults registers the built-in defaults on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("scheduler.concurrency", 5)
	v.SetDefault("scheduler.task_timeout", "30s")

	v.SetDefault("resolver.confidence_threshold", 0.5)
	v.SetDefault("resolver.escalate_validation_failures", true)
	v.SetDefault("resolver.history_depth", 5)

	v.SetDefault("store.path", "")
	v.SetDefault("store.seed_demo_data", true)

	v.SetDefault("intents.overlay_path", "")
}

// getUserConfigDir resolves the per-user config directory, honoring
// XDG_CONFIG_HOME.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "parley")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "parley")
	}
	return filepath.Join(home, ".config", "parley")
}

// findProjectConfig walks from the working directory to the filesystem
// root looking for a .parley.yaml.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".parley.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv resolves ${VAR} references, so secrets can stay out of the
// config file.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default mirrors setDefaults as a typed value, for display and tests.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Scheduler: SchedulerConfig{
			Concurrency: 5,
			TaskTimeout: 30 * time.Second,
		},
		Resolver: ResolverConfig{
			ConfidenceThreshold:        0.5,
			EscalateValidationFailures: true,
			HistoryDepth:               5,
		},
		Store: StoreConfig{
			SeedDemoData: true,
		},
	}
}
