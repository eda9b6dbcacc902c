// Package leader provides the leadership gate for the follower. Exactly one
// replica cluster-wide may ingest metastore notifications at a time.
package leader

// Monitor answers whether this replica currently holds leadership. The
// answer may flip at any moment; callers must re-check at every gate.
type Monitor interface {
	IsLeader() bool
}

// IsLeader reports leadership for a possibly-nil monitor. A nil monitor
// means single-node mode: always leader.
func IsLeader(m Monitor) bool {
	return m == nil || m.IsLeader()
}

// Static is a fixed-answer Monitor, for single-node deployments and tests.
type Static bool

func (s Static) IsLeader() bool {
	return bool(s)
}
