package replicator

import "sync/atomic"

// Stats holds atomic counters describing a PushReplicator's recent activity.
// Safe for concurrent use; read with Snapshot.
type Stats struct {
	queued    atomic.Int64
	delivered atomic.Int64
	succeeded atomic.Int64
	retried   atomic.Int64
	failed    atomic.Int64
}

// Snapshot is a point-in-time copy of Stats, suitable for logging.
type Snapshot struct {
	Queued    int64
	Delivered int64
	Succeeded int64
	Retried   int64
	Failed    int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Queued:    s.queued.Load(),
		Delivered: s.delivered.Load(),
		Succeeded: s.succeeded.Load(),
		Retried:   s.retried.Load(),
		Failed:    s.failed.Load(),
	}
}
