package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syntrixbase/metasync/internal/core/pubsub"
	"github.com/syntrixbase/metasync/internal/core/pubsub/memory"
	natsps "github.com/syntrixbase/metasync/internal/core/pubsub/nats"
	"github.com/syntrixbase/metasync/internal/follower"
	"github.com/syntrixbase/metasync/internal/leader"
	"github.com/syntrixbase/metasync/internal/metastore"
	"github.com/syntrixbase/metasync/internal/store/mongo"
)

// Init creates and connects all components. It does not start any
// background work; see Start.
func (m *Manager) Init(ctx context.Context) error {
	st, err := mongo.New(ctx, m.cfg.Storage, m.cfg.Follower.ResolvedServerName())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		st.Close(ctx)
		return fmt.Errorf("failed to ensure store indexes: %w", err)
	}
	m.store = st

	if m.cfg.PubSub.Enabled {
		switch m.cfg.PubSub.Provider {
		case "memory":
			m.broker = memory.NewBroker()
			m.publisher = m.broker.Publisher()
		default:
			nc, err := nats.Connect(m.cfg.PubSub.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS at %s: %w", m.cfg.PubSub.URL, err)
			}
			m.natsConn = nc
			pub, err := natsps.NewPublisher(nc, pubsub.PublisherOptions{
				StreamName: m.cfg.PubSub.Stream,
			})
			if err != nil {
				return fmt.Errorf("failed to create publisher: %w", err)
			}
			m.publisher = pub
		}
	}

	if m.cfg.Leader.Enabled {
		m.leaderMon = leader.NewEtcdMonitor(m.cfg.Leader, m.logger)
		if err := m.leaderMon.Start(ctx); err != nil {
			return fmt.Errorf("failed to start leader monitor: %w", err)
		}
	}

	client := metastore.NewHTTPClient(m.cfg.Metastore, m.logger)

	var leaderMon leader.Monitor
	if m.leaderMon != nil {
		leaderMon = m.leaderMon
	}
	m.follower = follower.New(m.cfg.Follower, client, m.store, leaderMon, m.logger)

	if m.opts.RunHTTP {
		m.initHTTPServer()
	}
	return nil
}

func (m *Manager) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := m.follower.Status()
		w.Header().Set("Content-Type", "application/json")
		if !st.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		// Go through pub/sub when available so every replica sees the
		// request, not just the one serving this call.
		if m.publisher != nil && m.cfg.Follower.FullUpdateSubscribeEnabled {
			subject := m.cfg.Follower.FullUpdateSubject
			if err := m.publisher.Publish(r.Context(), subject, []byte("http")); err != nil {
				m.logger.Error("failed to publish full update trigger", "error", err)
				http.Error(w, "failed to publish refresh request", http.StatusInternalServerError)
				return
			}
		} else {
			m.follower.RefreshSignal().Set()
		}
		w.WriteHeader(http.StatusAccepted)
	})

	m.httpServer = &http.Server{
		Addr:    m.cfg.Server.Listen,
		Handler: mux,
	}
}
