package follower

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/syntrixbase/metasync/internal/core/pubsub"
)

// RefreshSignal is the latched operator request for a full rebuild. Setting
// it is idempotent; the follower consumes it with TestAndClear once per
// tick, so each request triggers exactly one snapshot.
type RefreshSignal struct {
	subject string
	flag    atomic.Bool
	logger  *slog.Logger
}

// NewRefreshSignal creates a cleared signal bound to the given subject.
func NewRefreshSignal(subject string, logger *slog.Logger) *RefreshSignal {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshSignal{
		subject: subject,
		logger:  logger.With("component", "refresh-signal"),
	}
}

// OnMessage latches the signal. Receiving a subject other than the one this
// signal is bound to is a wiring bug, not an operational condition.
func (r *RefreshSignal) OnMessage(subject string, payload []byte) {
	if subject != r.subject {
		panic(fmt.Sprintf("refresh signal: unexpected subject %q, want %q", subject, r.subject))
	}
	r.logger.Info("full update trigger: refresh requested", "subject", subject, "payload", string(payload))
	r.flag.Store(true)
}

// Set latches the signal directly.
func (r *RefreshSignal) Set() {
	r.flag.Store(true)
}

// TestAndClear atomically consumes the signal. Returns true at most once
// per request.
func (r *RefreshSignal) TestAndClear() bool {
	return r.flag.CompareAndSwap(true, false)
}

// Run consumes refresh messages until the subscription closes. Meant to be
// launched on its own goroutine; the consumer's context controls shutdown.
func (r *RefreshSignal) Run(ctx context.Context, consumer pubsub.Consumer) error {
	msgs, err := consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.subject, err)
	}
	r.logger.Info("full update trigger: subscribed", "subject", r.subject)

	for msg := range msgs {
		r.OnMessage(msg.Subject(), msg.Data())
		if err := msg.Ack(); err != nil {
			r.logger.Error("failed to ack refresh message", "error", err)
		}
	}
	return nil
}
