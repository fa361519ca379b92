package metrics

import "sync/atomic"

// Ingest captures shared counters across webhook and spool ingestion.
type Ingest struct {
	batches int64
	saved   int64
	failed  int64
	skipped int64
}

// Snapshot provides a consistent view of the current counters.
type Snapshot struct {
	Batches int64 `json:"batches"`
	Saved   int64 `json:"saved"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// New creates a zeroed Ingest instance.
func New() *Ingest {
	return &Ingest{}
}

// Record accumulates one batch outcome.
func (m *Ingest) Record(saved, failed, skipped int) {
	atomic.AddInt64(&m.batches, 1)
	atomic.AddInt64(&m.saved, int64(saved))
	atomic.AddInt64(&m.failed, int64(failed))
	atomic.AddInt64(&m.skipped, int64(skipped))
}

// Snapshot returns a read-only view of the counters.
func (m *Ingest) Snapshot() Snapshot {
	return Snapshot{
		Batches: atomic.LoadInt64(&m.batches),
		Saved:   atomic.LoadInt64(&m.saved),
		Failed:  atomic.LoadInt64(&m.failed),
		Skipped: atomic.LoadInt64(&m.skipped),
	}
}
