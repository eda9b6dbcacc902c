package follower

import "sync/atomic"

// Status is a point-in-time snapshot of the follower's state flags.
type Status struct {
	// Connected is true while a metastore connection is up. Informational.
	Connected bool `json:"connected"`

	// FullUpdateRunning is true while a full snapshot is being taken.
	FullUpdateRunning bool `json:"full_update_running"`

	// Ready is true once the follower has completed its first pass that
	// needed no snapshot.
	Ready bool `json:"ready"`
}

// status owns the follower's shared flags. It replaces the process-wide
// booleans the service historically kept; everything is reached through the
// owning Follower.
type status struct {
	connected         atomic.Bool
	fullUpdateRunning atomic.Bool
	ready             atomic.Bool
}

func (s *status) snapshot() Status {
	return Status{
		Connected:         s.connected.Load(),
		FullUpdateRunning: s.fullUpdateRunning.Load(),
		Ready:             s.ready.Load(),
	}
}
