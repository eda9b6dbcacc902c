// Package follower implements the metastore follower: the single-writer
// control loop that keeps the authorization store synchronized with the
// upstream Hive-style metastore, by consuming its notification log and
// re-baselining from full snapshots when the log cannot be trusted.
package follower

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/syntrixbase/metasync/internal/follower/config"
	"github.com/syntrixbase/metasync/internal/follower/metrics"
	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/leader"
	"github.com/syntrixbase/metasync/internal/metastore"
	"github.com/syntrixbase/metasync/internal/store"
)

// readyMarker is printed to stdout exactly once, the first time a pass
// completes without needing a snapshot. Operators watch for this line.
const readyMarker = "Metasync HMS support is ready"

// Follower is the orchestrator. It is single-threaded: one Tick runs at a
// time, driven by Run's ticker. Concurrency with external readers goes
// exclusively through the store and its CounterWait.
type Follower struct {
	cfg       config.Config
	client    metastore.Client
	store     store.Store
	fetcher   *Fetcher
	processor *Processor
	leaderMon leader.Monitor
	refresh   *RefreshSignal
	st        status
	logger    *slog.Logger
	out       io.Writer

	// hmsImageID is the in-memory high-water of the persisted image id.
	// Owned by the follower goroutine; see wakeUpWaiters.
	hmsImageID int64
}

// New wires a follower. leaderMon may be nil for single-node mode.
func New(cfg config.Config, client metastore.Client, st store.Store, leaderMon leader.Monitor, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "follower")

	serverName := cfg.ResolvedServerName()
	if cfg.AuthzServerName == "" && cfg.ServerName != "" {
		logger.Warn("server_name is deprecated, use authz_server_name", "server_name", cfg.ServerName)
	}

	return &Follower{
		cfg:        cfg,
		client:     client,
		store:      st,
		fetcher:    NewFetcher(client, 0, cfg.FetcherCacheSize, logger),
		processor:  NewProcessor(st, serverName, logger),
		leaderMon:  leaderMon,
		refresh:    NewRefreshSignal(cfg.FullUpdateSubject, logger),
		logger:     logger,
		out:        os.Stdout,
		hmsImageID: store.EmptyPathsImageID,
	}
}

// Status returns a snapshot of the follower's state flags.
func (f *Follower) Status() Status {
	return f.st.snapshot()
}

// RefreshSignal returns the latched full-refresh flag, for the pub/sub
// subscription to feed.
func (f *Follower) RefreshSignal() *RefreshSignal {
	return f.refresh
}

// Run drives Tick on the configured interval until ctx is canceled.
func (f *Follower) Run(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()

	f.logger.Info("follower started",
		"tick_interval", f.cfg.TickInterval,
		"hdfs_sync_enabled", f.cfg.HDFSSyncEnabled,
		"authz_server_name", f.processor.AuthzServerName(),
	)

	for {
		select {
		case <-ctx.Done():
			f.Close()
			f.logger.Info("follower stopped")
			return
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Close tears down the metastore connection and the fetcher cache.
func (f *Follower) Close() {
	if err := f.client.Disconnect(); err != nil {
		f.logger.Error("failed to disconnect from metastore", "error", err)
	}
	f.st.connected.Store(false)
	f.fetcher.Close()
}

// Tick performs one full pass. It never panics out and never returns an
// error: every failure is logged and retried on the next tick.
func (f *Follower) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("tick aborted by panic", "panic", r)
			metrics.TickErrors.Inc()
			f.Close()
		}
	}()

	maxID, err := f.store.GetMaxNotificationID(ctx)
	if err != nil {
		f.logger.Error("failed to read last processed notification id, skipping this pass", "error", err)
		metrics.TickErrors.Inc()
		return
	}

	// Wake clients waiting on already-applied ids. This runs on non-leader
	// replicas too: their readers observe the shared store's progress.
	f.wakeUpWaiters(ctx, maxID)

	// Only the leader listens to the metastore.
	if !f.isLeader() {
		f.Close()
		return
	}

	f.syncWithMetastore(ctx, maxID)
}

func (f *Follower) isLeader() bool {
	return leader.IsLeader(f.leaderMon)
}

// syncWithMetastore decides between incremental consumption and a full
// snapshot, then executes one of them.
func (f *Follower) syncWithMetastore(ctx context.Context, maxID int64) {
	if err := f.connect(ctx); err != nil {
		f.logger.Error("cannot connect to metastore", "error", err)
		metrics.TickErrors.Inc()
		return
	}

	required, err := f.isFullSnapshotRequired(ctx, maxID)
	if err != nil {
		f.logger.Error("failed to decide on full snapshot", "error", err)
		f.disconnect()
		metrics.TickErrors.Inc()
		return
	}
	if required {
		if _, err := f.createFullSnapshot(ctx); err != nil {
			f.logger.Error("failed to create full snapshot", "error", err)
			f.disconnect()
			metrics.TickErrors.Inc()
		}
		return
	}

	evs, outcome := f.fetchNotifications(ctx, maxID)
	switch outcome.kind {
	case fetchNeedsSnapshot:
		f.logger.Error("notification fetch out of sync with upstream", "error", outcome.err)
		if _, err := f.createFullSnapshot(ctx); err != nil {
			f.logger.Error("failed to create full snapshot", "error", err)
			f.disconnect()
			metrics.TickErrors.Inc()
		}
		return
	case fetchTransportError:
		f.logger.Error("failed to fetch notifications", "error", outcome.err)
		f.disconnect()
		metrics.TickErrors.Inc()
		return
	}

	f.markReady()

	if err := f.processNotifications(ctx, evs, maxID); err != nil {
		f.logger.Error("failed to process notifications", "error", err)
		f.disconnect()
		metrics.TickErrors.Inc()
	}
}

func (f *Follower) connect(ctx context.Context) error {
	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	f.st.connected.Store(true)
	return nil
}

func (f *Follower) disconnect() {
	if err := f.client.Disconnect(); err != nil {
		f.logger.Error("failed to disconnect from metastore", "error", err)
	}
	f.st.connected.Store(false)
}

type fetchKind int

const (
	fetchOK fetchKind = iota
	fetchNeedsSnapshot
	fetchTransportError
)

// fetchOutcome makes the fetch result an explicit value so the caller is a
// flat switch instead of nested error inspection.
type fetchOutcome struct {
	kind fetchKind
	err  error
}

func (f *Follower) fetchNotifications(ctx context.Context, after int64) ([]hms.Event, fetchOutcome) {
	evs, err := f.fetcher.Fetch(ctx, after)
	switch {
	case errors.Is(err, metastore.ErrOutOfSync):
		return nil, fetchOutcome{kind: fetchNeedsSnapshot, err: err}
	case err != nil:
		return nil, fetchOutcome{kind: fetchTransportError, err: err}
	default:
		return evs, fetchOutcome{kind: fetchOK}
	}
}

// isFullSnapshotRequired evaluates the snapshot rules in their fixed order:
// empty notification history, empty path image under HDFS sync, upstream
// rewind, then the operator refresh signal (consumed exactly once).
func (f *Follower) isFullSnapshotRequired(ctx context.Context, maxID int64) (bool, error) {
	empty, err := f.store.IsNotificationsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if empty {
		f.logger.Debug("no notifications persisted yet, requesting full snapshot", "max_notification_id", maxID)
		return true, nil
	}

	if f.cfg.HDFSSyncEnabled {
		pathsEmpty, err := f.store.IsPathsImageEmpty(ctx)
		if err != nil {
			return false, err
		}
		if pathsEmpty {
			f.logger.Debug("hdfs sync enabled and path image empty, requesting full snapshot")
			return true, nil
		}
	}

	currentID, err := f.fetcher.CurrentID(ctx)
	if err != nil {
		return false, err
	}
	if currentID < maxID {
		f.logger.Info("upstream notification id behind ours, requesting full snapshot",
			"upstream_id", currentID,
			"max_notification_id", maxID,
		)
		return true, nil
	}

	if f.refresh.TestAndClear() {
		f.logger.Info("full update trigger: initiating full snapshot request")
		return true, nil
	}

	return false, nil
}

// createFullSnapshot fetches and persists a full image, then wakes waiters
// with the image id. Returns the id of the last notification the image
// includes.
func (f *Follower) createFullSnapshot(ctx context.Context) (int64, error) {
	f.logger.Debug("attempting to take a full metastore snapshot")
	if !f.st.fullUpdateRunning.CompareAndSwap(false, true) {
		return store.EmptyNotificationID, fmt.Errorf("full update already running when it should not be")
	}
	defer f.st.fullUpdateRunning.Store(false)

	start := time.Now()
	snap, err := f.client.FullSnapshot(ctx)
	if err != nil {
		return store.EmptyNotificationID, fmt.Errorf("failed to fetch full snapshot: %w", err)
	}

	if len(snap.Paths) == 0 {
		f.logger.Debug("received empty path image while taking a full snapshot", "image_id", snap.ID)
		return snap.ID, nil
	}

	// Re-check leadership before persisting: the snapshot may have taken a
	// while and another replica may own the store by now.
	if !f.isLeader() {
		f.logger.Info("not persisting full snapshot since not a leader")
		return store.EmptyNotificationID, nil
	}

	if f.cfg.HDFSSyncEnabled {
		f.logger.Info("persisting full snapshot", "image_id", snap.ID, "paths", len(snap.Paths))
		if err := f.store.PersistFullPathsImage(ctx, snap.Paths, snap.ID); err != nil {
			return store.EmptyNotificationID, fmt.Errorf("failed to persist full paths image: %w", err)
		}
	} else {
		f.logger.Info("hdfs sync disabled, recording last processed id only", "image_id", snap.ID)
		if err := f.store.PersistLastProcessedID(ctx, snap.ID); err != nil {
			return store.EmptyNotificationID, fmt.Errorf("failed to record snapshot id: %w", err)
		}
	}

	f.wakeUpWaiters(ctx, snap.ID)
	metrics.SnapshotsTaken.Inc()
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	f.logger.Info("metastore support is ready", "image_id", snap.ID)
	return snap.ID, nil
}

// processNotifications applies a batch in id order, waking waiters as each
// id becomes durable.
func (f *Follower) processNotifications(ctx context.Context, evs []hms.Event, notificationID int64) error {
	if len(evs) == 0 {
		return nil
	}

	prev := notificationID
	for _, ev := range evs {
		if prev > 0 {
			if ev.ID == prev {
				f.logger.Info("processing event with duplicate id", "event_id", ev.ID)
				metrics.DuplicatesDetected.Inc()
			} else if ev.ID != prev+1 {
				f.logger.Info("events missing or out of order", "after_id", prev, "event_id", ev.ID)
				metrics.GapsDetected.Inc()
			}
		}
		prev = ev.ID

		// Leadership can move away mid-batch. Stop cleanly; already-applied
		// events stay applied.
		if !f.isLeader() {
			f.logger.Debug("not processing notifications since not a leader")
			return nil
		}

		applied, err := f.processor.ProcessEvent(ctx, ev)
		switch {
		case err == nil:
			f.fetcher.UpdateCache(ev)
			if applied {
				metrics.EventsApplied.Inc()
			}
		case errors.Is(err, store.ErrConflict):
			f.logger.Info("storage conflict, possibly a re-delivered notification", "event_id", ev.ID)
			maxID, serr := f.store.GetMaxNotificationID(ctx)
			if serr != nil {
				return fmt.Errorf("failed to read max notification id: %w", serr)
			}
			if ev.ID <= maxID {
				// The event is already durable; the rest of the batch would
				// re-process history. Stop and let the fetcher re-seek.
				f.logger.Error("event id at or below persisted position, stopping batch",
					"event_id", ev.ID,
					"max_notification_id", maxID,
				)
				return nil
			}
			// Conflicting id ahead of our persisted position: another
			// writer raced us. The id still gets recorded below.
			metrics.EventErrors.Inc()
		default:
			f.logger.Error("failed to process notification", "event_id", ev.ID, "error", err)
			metrics.EventErrors.Inc()
		}

		if !applied {
			// Record the id even though the event had no effect, so the
			// stream head advances past uninteresting events instead of
			// refetching them forever.
			f.logger.Debug("explicitly persisting notification id", "event_id", ev.ID)
			if perr := f.store.PersistLastProcessedID(ctx, ev.ID); perr != nil {
				return fmt.Errorf("failed to persist notification id %d: %w", ev.ID, perr)
			}
			f.fetcher.UpdateCache(ev)
			if err == nil {
				metrics.EventsSkipped.Inc()
			}
		}

		f.wakeUpWaiters(ctx, ev.ID)
	}
	return nil
}

// markReady emits the one-time operator-visible ready marker.
func (f *Follower) markReady() {
	if f.st.ready.CompareAndSwap(false, true) {
		fmt.Fprintln(f.out, readyMarker)
	}
}

// wakeUpWaiters releases CounterWait waiters up to eventId. The persisted
// image id is read fresh every time: if it moved past our in-memory
// high-water, a snapshot re-based the store and the event-id axis may have
// jumped, so the counter is reset instead of advanced.
func (f *Follower) wakeUpWaiters(ctx context.Context, eventID int64) {
	cw := f.store.CounterWait()
	if cw == nil {
		return
	}

	imageID, err := f.store.GetLastProcessedImageID(ctx)
	if err != nil {
		f.logger.Error("failed to read last processed image id", "error", err)
		cw.Update(eventID)
		return
	}

	if imageID > f.hmsImageID {
		f.logger.Debug("image id advanced, resetting counter",
			"event_id", eventID,
			"image_id", imageID,
			"previous_image_id", f.hmsImageID,
		)
		cw.Reset(eventID)
		f.hmsImageID = imageID
	}

	cw.Update(eventID)
}
