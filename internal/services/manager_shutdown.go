package services

import (
	"context"
)

// Shutdown stops background work and closes all components. ctx bounds how
// long the shutdown waits.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.httpServer != nil {
		m.logger.Info("stopping http server")
		if err := m.httpServer.Shutdown(ctx); err != nil {
			m.logger.Error("error shutting down http server", "error", err)
		}
	}

	if m.cancelBg != nil {
		m.cancelBg()
	}

	// Wait for the follower loop and the trigger subscription.
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("timeout waiting for background tasks")
	}

	if m.leaderMon != nil {
		if err := m.leaderMon.Stop(ctx); err != nil {
			m.logger.Error("error stopping leader monitor", "error", err)
		}
	}

	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			m.logger.Error("error closing publisher", "error", err)
		}
	}

	if m.natsConn != nil {
		m.natsConn.Close()
	}

	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			m.logger.Error("error closing store", "error", err)
		}
	}
}
