package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Event processing
	EventsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_events_applied_total",
		Help: "The total number of notification events applied to the store",
	})

	EventsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_events_skipped_total",
		Help: "The total number of notification events recorded as no-ops",
	})

	EventErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_event_errors_total",
		Help: "The total number of events whose processing failed",
	})

	// Stream health
	GapsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_gaps_detected_total",
		Help: "The total number of gaps observed in the event id sequence",
	})

	DuplicatesDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_duplicates_detected_total",
		Help: "The total number of duplicate event ids observed",
	})

	// Snapshots
	SnapshotsTaken = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_snapshots_taken_total",
		Help: "The total number of full snapshots persisted",
	})

	SnapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "follower_snapshot_duration_seconds",
		Help: "The time spent taking and persisting a full snapshot",
	})

	// Ticks
	TickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follower_tick_errors_total",
		Help: "The total number of ticks aborted by an error",
	})
)

func init() {
	prometheus.MustRegister(EventsApplied)
	prometheus.MustRegister(EventsSkipped)
	prometheus.MustRegister(EventErrors)
	prometheus.MustRegister(GapsDetected)
	prometheus.MustRegister(DuplicatesDetected)
	prometheus.MustRegister(SnapshotsTaken)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(TickErrors)
}
