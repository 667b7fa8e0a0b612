// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Graph() GraphConfig

	// Graph setters, used by CLI flags to override file and env values.
	SetGraphBackend(string)
	SetGraphID(string)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods.
type Config struct {
	logger LoggerConfig
	graph  GraphConfig
}

// fileConfig mirrors Config with exported fields so viper can decode into it.
type fileConfig struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Graph  GraphConfig  `mapstructure:"graph" yaml:"graph"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig { return c.logger }
func (c *Config) Graph() GraphConfig   { return c.graph }

func (c *Config) SetGraphBackend(backend string) { c.graph.Backend = backend }
func (c *Config) SetGraphID(id string)           { c.graph.GraphID = id }

// LoggerConfig defines settings for the application logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// Backend identifiers accepted by GraphConfig.Backend.
const (
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// GraphConfig holds the connection details for the graph service.
type GraphConfig struct {
	// Backend selects the graph implementation: "remote" for the hosted
	// service, "memory" for the embedded one.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// URL is the service base URL, required for the remote backend.
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// GraphID is the graph addressed by every operation.
	GraphID string `mapstructure:"graph_id" yaml:"graph_id"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &Config{logger: fc.Logger, graph: fc.Graph}
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tastegraph")
	v.SetDefault("logger.log_file", "tastegraph.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Graph --
	v.SetDefault("graph.backend", BackendRemote)
	v.SetDefault("graph.graph_id", "tastegraph")
	v.SetDefault("graph.request_timeout", "30s")
	v.SetDefault("graph.rate_limit", 50.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data
	v.BindEnv("graph.username", "TASTEGRAPH_GRAPH_USERNAME")
	v.BindEnv("graph.password", "TASTEGRAPH_GRAPH_PASSWORD")

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := Config{logger: fc.Logger, graph: fc.Graph}

	// Manually load the password if Unmarshal didn't pick it up
	if cfg.graph.Password == "" {
		cfg.graph.Password = os.Getenv("TASTEGRAPH_GRAPH_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.graph.Validate(); err != nil {
		return fmt.Errorf("graph configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the graph connection settings.
func (g *GraphConfig) Validate() error {
	switch g.Backend {
	case BackendRemote:
		if g.URL == "" {
			return fmt.Errorf("url is required for the %s backend", BackendRemote)
		}
	case BackendMemory:
		// No connection settings needed.
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRemote, BackendMemory, g.Backend)
	}
	if g.GraphID == "" {
		return fmt.Errorf("graph_id must not be empty")
	}
	if g.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be a positive duration")
	}
	if g.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be a positive number")
	}
	return nil
}
