// Package services wires the application components together and owns
// their lifecycle: init, start, shutdown.
package services

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/metasync/internal/config"
	"github.com/syntrixbase/metasync/internal/core/pubsub"
	"github.com/syntrixbase/metasync/internal/core/pubsub/memory"
	"github.com/syntrixbase/metasync/internal/follower"
	"github.com/syntrixbase/metasync/internal/leader"
	"github.com/syntrixbase/metasync/internal/store/mongo"
)

// Options selects which optional components the manager runs.
type Options struct {
	// RunHTTP enables the health and metrics HTTP server.
	RunHTTP bool
}

// Manager owns the component lifecycle.
type Manager struct {
	cfg  *config.Config
	opts Options

	store      *mongo.Store
	follower   *follower.Follower
	leaderMon  *leader.EtcdMonitor
	natsConn   *nats.Conn
	broker     *memory.Broker
	publisher  pubsub.Publisher
	httpServer *http.Server
	logger     *slog.Logger

	cancelBg func()
	wg       sync.WaitGroup
}

// NewManager creates a manager for the given configuration.
func NewManager(cfg *config.Config, opts Options) *Manager {
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default().With("component", "services"),
	}
}

// Follower returns the managed follower, for status inspection.
func (m *Manager) Follower() *follower.Follower {
	return m.follower
}
