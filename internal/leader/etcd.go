package leader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	dialTimeout           = 5 * time.Second
	defaultLeaseTTL       = 5 // seconds
	defaultElectionPrefix = "/metasync/leader"
)

// Config configures the etcd-backed monitor.
type Config struct {
	// Enabled turns etcd leader election on. When false the service runs
	// in single-node mode (always leader).
	Enabled bool `yaml:"enabled"`

	// Endpoints are the etcd cluster endpoints.
	Endpoints []string `yaml:"endpoints"`

	// ElectionPrefix is the etcd key prefix the election runs under.
	ElectionPrefix string `yaml:"election_prefix"`

	// LeaseTTL is the election lease TTL in seconds.
	LeaseTTL int `yaml:"lease_ttl"`
}

// DefaultConfig returns defaults for a disabled (single-node) monitor.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Endpoints:      []string{"localhost:2379"},
		ElectionPrefix: defaultElectionPrefix,
		LeaseTTL:       defaultLeaseTTL,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.Enabled && len(c.Endpoints) == 0 {
		return fmt.Errorf("leader: endpoints are required when election is enabled")
	}
	return nil
}

// EtcdMonitor campaigns for leadership through an etcd election and answers
// IsLeader from a local flag.
type EtcdMonitor struct {
	cfg        Config
	logger     *slog.Logger
	instanceID string

	client   *clientv3.Client
	isLeader atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEtcdMonitor creates a monitor that is not yet campaigning.
func NewEtcdMonitor(cfg Config, logger *slog.Logger) *EtcdMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ElectionPrefix == "" {
		cfg.ElectionPrefix = defaultElectionPrefix
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	return &EtcdMonitor{
		cfg:        cfg,
		logger:     logger.With("component", "leader-monitor"),
		instanceID: uuid.NewString(),
		stopCh:     make(chan struct{}),
	}
}

// InstanceID returns this replica's election candidate id.
func (m *EtcdMonitor) InstanceID() string {
	return m.instanceID
}

// IsLeader reports whether this replica currently holds the election.
func (m *EtcdMonitor) IsLeader() bool {
	return m.isLeader.Load()
}

// Start connects to etcd and begins campaigning in the background.
func (m *EtcdMonitor) Start(ctx context.Context) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   m.cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}
	m.client = cli

	m.wg.Add(1)
	go m.campaignLoop()

	m.logger.Info("leader election started",
		"endpoints", m.cfg.Endpoints,
		"prefix", m.cfg.ElectionPrefix,
		"instance_id", m.instanceID,
	)
	return nil
}

// Stop resigns leadership and closes the etcd client.
func (m *EtcdMonitor) Stop(ctx context.Context) error {
	close(m.stopCh)
	m.wg.Wait()
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// campaignLoop holds leadership for as long as the session lives, then
// campaigns again. Leadership is dropped the moment the session is lost.
func (m *EtcdMonitor) campaignLoop() {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stopCh
		cancel()
	}()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		session, err := concurrency.NewSession(m.client, concurrency.WithTTL(m.cfg.LeaseTTL))
		if err != nil {
			m.logger.Error("failed to create election session", "error", err)
			select {
			case <-m.stopCh:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		election := concurrency.NewElection(session, m.cfg.ElectionPrefix)
		if err := election.Campaign(ctx, m.instanceID); err != nil {
			m.isLeader.Store(false)
			session.Close()
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("election campaign failed", "error", err)
			continue
		}

		m.isLeader.Store(true)
		m.logger.Info("became leader", "instance_id", m.instanceID)

		select {
		case <-session.Done():
			m.isLeader.Store(false)
			m.logger.Warn("leadership lost: election session expired")
		case <-m.stopCh:
			m.isLeader.Store(false)
			resignCtx, resignCancel := context.WithTimeout(context.Background(), dialTimeout)
			if err := election.Resign(resignCtx); err != nil {
				m.logger.Error("failed to resign leadership", "error", err)
			}
			resignCancel()
			session.Close()
			return
		}
	}
}
