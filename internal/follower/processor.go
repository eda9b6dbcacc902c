package follower

import (
	"context"
	"log/slog"

	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/store"
)

// Processor translates one notification into its authorization effect
// against the store. An event can be semantically irrelevant (unknown kind,
// missing fields); the processor reports those as not applied without
// touching the store, and the loop still records their ids.
type Processor struct {
	store      store.Store
	serverName string
	logger     *slog.Logger
}

// NewProcessor creates a processor scoped to the given authorization server.
func NewProcessor(st store.Store, serverName string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:      st,
		serverName: serverName,
		logger:     logger.With("component", "notification-processor"),
	}
}

// AuthzServerName returns the server this processor mutates privileges for.
func (p *Processor) AuthzServerName() string {
	return p.serverName
}

// ProcessEvent applies one event. Returns whether the event was semantically
// applicable; store errors (including store.ErrConflict) pass through.
func (p *Processor) ProcessEvent(ctx context.Context, ev hms.Event) (bool, error) {
	if !p.relevant(ev) {
		return false, nil
	}
	return p.store.ApplyEvent(ctx, ev)
}

// relevant filters events that cannot carry an authorization effect.
func (p *Processor) relevant(ev hms.Event) bool {
	if !ev.Type.IsValid() {
		p.logger.Debug("ignoring event of unknown type", "event_id", ev.ID, "event_type", ev.Type)
		return false
	}
	if ev.Database == "" {
		p.logger.Debug("ignoring event without a database", "event_id", ev.ID, "event_type", ev.Type)
		return false
	}

	switch ev.Type {
	case hms.EventCreateTable, hms.EventDropTable, hms.EventAlterTable,
		hms.EventAddPartition, hms.EventDropPartition, hms.EventAlterPartition:
		if ev.Table == "" {
			p.logger.Debug("ignoring table event without a table", "event_id", ev.ID, "event_type", ev.Type)
			return false
		}
	}

	switch ev.Type {
	case hms.EventAddPartition, hms.EventDropPartition:
		if !ev.TouchesPaths() {
			p.logger.Debug("ignoring partition event without a location", "event_id", ev.ID)
			return false
		}
	}

	return true
}
