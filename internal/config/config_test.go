package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	followercfg "github.com/syntrixbase/metasync/internal/follower/config"
	"github.com/syntrixbase/metasync/internal/leader"
	"github.com/syntrixbase/metasync/internal/metastore"
	storecfg "github.com/syntrixbase/metasync/internal/store/config"
)

func defaultTestConfig() *Config {
	return &Config{
		Logging:   DefaultLoggingConfig(),
		Server:    DefaultServerConfig(),
		Storage:   storecfg.DefaultConfig(),
		Metastore: metastore.DefaultConfig(),
		PubSub:    DefaultPubSubConfig(),
		Leader:    leader.DefaultConfig(),
		Follower:  followercfg.DefaultConfig(),
	}
}

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, defaultTestConfig().Validate())
}

func TestValidateRejectsBadComponent(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Storage.URI = ""
	assert.Error(t, cfg.Validate())

	cfg = defaultTestConfig()
	cfg.Follower.TickInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestServerConfigValidate(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Listen = ""
	assert.Error(t, cfg.Validate())
}

func TestPubSubConfigValidate(t *testing.T) {
	cfg := DefaultPubSubConfig()
	assert.NoError(t, cfg.Validate())

	// Disabled pubsub skips field checks entirely.
	cfg.URL = ""
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = DefaultPubSubConfig()
	cfg.Enabled = true
	cfg.Stream = ""
	assert.Error(t, cfg.Validate())

	// The memory provider has no endpoint to configure.
	cfg = DefaultPubSubConfig()
	cfg.Enabled = true
	cfg.Provider = "memory"
	cfg.URL = ""
	assert.NoError(t, cfg.Validate())

	cfg = DefaultPubSubConfig()
	cfg.Enabled = true
	cfg.Provider = "rabbitmq"
	assert.Error(t, cfg.Validate())
}
