package services

import (
	"context"
	"net/http"

	"github.com/syntrixbase/metasync/internal/core/pubsub"
	natsps "github.com/syntrixbase/metasync/internal/core/pubsub/nats"
)

// Start launches the background work: the follower loop, the full update
// trigger subscription, and the HTTP server.
func (m *Manager) Start(bgCtx context.Context) error {
	ctx, cancel := context.WithCancel(bgCtx)
	m.cancelBg = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.follower.Run(ctx)
	}()

	if m.cfg.PubSub.Enabled && m.cfg.Follower.FullUpdateSubscribeEnabled {
		var consumer pubsub.Consumer
		if m.broker != nil {
			consumer = m.broker.Consumer(m.cfg.Follower.FullUpdateSubject, 0)
		} else {
			var err error
			consumer, err = natsps.NewConsumer(m.natsConn, pubsub.ConsumerOptions{
				StreamName:    m.cfg.PubSub.Stream,
				ConsumerName:  "full-update-trigger",
				FilterSubject: m.cfg.Follower.FullUpdateSubject,
			})
			if err != nil {
				cancel()
				return err
			}
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.follower.RefreshSignal().Run(ctx, consumer); err != nil {
				m.logger.Error("full update trigger subscription stopped", "error", err)
			}
		}()
	}

	if m.httpServer != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.logger.Info("http server listening", "addr", m.httpServer.Addr)
			if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				m.logger.Error("http server error", "error", err)
			}
		}()
	}

	return nil
}
