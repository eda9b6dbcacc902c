// Package config holds the persistence configuration.
package config

import (
	"fmt"
	"time"
)

// Config configures the MongoDB-backed store.
type Config struct {
	// URI is the MongoDB connection string.
	URI string `yaml:"uri"`

	// Database is the database holding the authz collections.
	Database string `yaml:"database"`

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// OperationTimeout bounds individual store operations when the caller's
	// context has no deadline of its own.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// DefaultConfig returns sensible defaults for a local deployment.
func DefaultConfig() Config {
	return Config{
		URI:              "mongodb://localhost:27017",
		Database:         "metasync",
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("storage: uri is required")
	}
	if c.Database == "" {
		return fmt.Errorf("storage: database is required")
	}
	return nil
}
