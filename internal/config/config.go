// Package config handles configuration loading for agentmesh. Values come
// from an optional agentmesh.yaml, AGENTMESH_* environment variables, and
// defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vmitrev/agentmesh/pkg/worker"
)

// Config holds all configuration for agentmesh.
type Config struct {
	Database   DatabaseConfig    `mapstructure:"database"`
	Server     ServerConfig      `mapstructure:"server"`
	Dispatcher DispatcherConfig  `mapstructure:"dispatcher"`
	Anthropic  AnthropicConfig   `mapstructure:"anthropic"`
	Workers    []worker.Endpoint `mapstructure:"workers"`
}

// DatabaseConfig holds the durable store settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DispatcherConfig holds the concurrency and timeout knobs.
type DispatcherConfig struct {
	PoolSize        int           `mapstructure:"pool_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout"`
}

// AnthropicConfig holds the decomposition service settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Load reads configuration from the given file path, or from the default
// search paths when path is empty. A missing config file is not an error;
// defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.port", "8080")
	v.SetDefault("dispatcher.pool_size", 4)
	v.SetDefault("dispatcher.poll_interval", 500*time.Millisecond)
	v.SetDefault("dispatcher.workflow_timeout", 10*time.Minute)

	v.SetEnvPrefix("AGENTMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("agentmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/agentmesh")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Directory builds a static worker directory from the configured catalog.
func (c *Config) Directory() *worker.StaticDirectory {
	return worker.NewStaticDirectory(c.Workers)
}
