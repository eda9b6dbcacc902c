// Package config holds the follower configuration.
package config

import (
	"fmt"
	"time"
)

// DefaultAuthzServerName is the hard default used when neither the current
// nor the deprecated server-name key is set.
const DefaultAuthzServerName = "server1"

// Config configures the metastore follower.
type Config struct {
	// AuthzServerName is the authorization server this deployment serves.
	AuthzServerName string `yaml:"authz_server_name"`

	// ServerName is the deprecated key for AuthzServerName, honored for
	// existing deployments.
	ServerName string `yaml:"server_name"`

	// HDFSSyncEnabled controls whether the path image is maintained. It
	// also widens the full-snapshot decision: an empty path image forces a
	// snapshot even when notifications exist.
	HDFSSyncEnabled bool `yaml:"hdfs_sync_enabled"`

	// FullUpdateSubscribeEnabled gates the pub/sub subscription for the
	// operator-initiated full refresh signal.
	FullUpdateSubscribeEnabled bool `yaml:"full_update_subscribe_enabled"`

	// FullUpdateSubject is the pub/sub subject the refresh signal arrives on.
	FullUpdateSubject string `yaml:"full_update_subject"`

	// TickInterval is the follower's scheduler period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// FetcherCacheSize bounds the notification dedup cache.
	FetcherCacheSize int `yaml:"fetcher_cache_size"`
}

// DefaultConfig returns the follower defaults.
func DefaultConfig() Config {
	return Config{
		HDFSSyncEnabled:            false,
		FullUpdateSubscribeEnabled: false,
		FullUpdateSubject:          "metasync.fullupdate.hms",
		TickInterval:               500 * time.Millisecond,
		FetcherCacheSize:           100,
	}
}

// ResolvedServerName resolves the authorization server name through the
// current key, then the deprecated key, then the hard default.
func (c Config) ResolvedServerName() string {
	if c.AuthzServerName != "" {
		return c.AuthzServerName
	}
	if c.ServerName != "" {
		return c.ServerName
	}
	return DefaultAuthzServerName
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("follower: tick_interval must be positive")
	}
	if c.FetcherCacheSize <= 0 {
		return fmt.Errorf("follower: fetcher_cache_size must be positive")
	}
	if c.FullUpdateSubscribeEnabled && c.FullUpdateSubject == "" {
		return fmt.Errorf("follower: full_update_subject is required when subscription is enabled")
	}
	return nil
}
