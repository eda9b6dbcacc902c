// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	followercfg "github.com/syntrixbase/metasync/internal/follower/config"
	"github.com/syntrixbase/metasync/internal/leader"
	"github.com/syntrixbase/metasync/internal/metastore"
	storecfg "github.com/syntrixbase/metasync/internal/store/config"
)

// Config holds the application configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`

	// Components
	Storage   storecfg.Config    `yaml:"storage"`
	Metastore metastore.Config   `yaml:"metastore"`
	PubSub    PubSubConfig       `yaml:"pubsub"`
	Leader    leader.Config      `yaml:"leader"`
	Follower  followercfg.Config `yaml:"follower"`
}

// ServerConfig holds the HTTP server configuration for health and metrics
// endpoints.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen: ":8080",
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("server listen address is required")
	}
	return nil
}

// PubSubConfig holds the messaging configuration used for the full update
// trigger subscription.
type PubSubConfig struct {
	Enabled bool `yaml:"enabled"`

	// Provider selects the backend: "nats" or "memory". The memory provider
	// only reaches subscribers within the same process.
	Provider string `yaml:"provider"`

	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// DefaultPubSubConfig returns default pubsub configuration.
func DefaultPubSubConfig() PubSubConfig {
	return PubSubConfig{
		Enabled:  false,
		Provider: "nats",
		URL:      "nats://localhost:4222",
		Stream:   "metasync",
	}
}

// Validate checks the pubsub configuration.
func (c *PubSubConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case "nats":
		if c.URL == "" {
			return fmt.Errorf("pubsub URL is required when the nats provider is enabled")
		}
		if c.Stream == "" {
			return fmt.Errorf("pubsub stream name is required when the nats provider is enabled")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown pubsub provider %q", c.Provider)
	}
	return nil
}

// LoadConfig loads configuration from files.
// Order: defaults -> config.yml -> config.local.yml -> Validate
func LoadConfig() *Config {
	// 1. Start with default values (so YAML can override them, including bool fields)
	cfg := &Config{
		Logging:   DefaultLoggingConfig(),
		Server:    DefaultServerConfig(),
		Storage:   storecfg.DefaultConfig(),
		Metastore: metastore.DefaultConfig(),
		PubSub:    DefaultPubSubConfig(),
		Leader:    leader.DefaultConfig(),
		Follower:  followercfg.DefaultConfig(),
	}

	// 2. Load config.yml (overrides defaults)
	loadFile("config/config.yml", cfg)

	// 3. Load config.local.yml (overrides config.yml)
	loadFile("config/config.local.yml", cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	return cfg
}

// Validate checks every component configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Metastore.Validate(); err != nil {
		return err
	}
	if err := c.PubSub.Validate(); err != nil {
		return err
	}
	if err := c.Leader.Validate(); err != nil {
		return err
	}
	if err := c.Follower.Validate(); err != nil {
		return err
	}
	return nil
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return // File doesn't exist, skip
		}
		log.Printf("Warning: Error reading %s: %v", filename, err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: Error parsing %s: %v", filename, err)
	}
}
