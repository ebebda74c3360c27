package runner

import "sync/atomic"

// Counters aggregates run statistics. Transfer workers and the coordinator
// update it via atomics; snapshots are taken with Summary.
type Counters struct {
	Pages     atomic.Int64
	Scenes    atomic.Int64
	Ordered   atomic.Int64
	Skipped   atomic.Int64
	Shortfall atomic.Int64
	Fetched   atomic.Int64
	Uploaded  atomic.Int64
	Discarded atomic.Int64
	Retried   atomic.Int64
	Failed    atomic.Int64
}

// Summary is a point-in-time snapshot of the run counters.
type Summary struct {
	// Pages is the number of scene-search pages consumed.
	Pages int64

	// Scenes is the number of catalog records seen.
	Scenes int64

	// Ordered is the number of items submitted for fulfillment.
	Ordered int64

	// Skipped counts records without an orderable product plus staged
	// artifacts that were neither kept nor recognized sidecars.
	Skipped int64

	// Shortfall is the number of ordered items that never became ready.
	Shortfall int64

	// Fetched is the number of links successfully downloaded to staging.
	Fetched int64

	// Uploaded is the number of rasters pushed to object storage.
	Uploaded int64

	// Discarded is the number of sidecar artifacts deleted unkept.
	Discarded int64

	// Retried is the number of link transfer attempts that were re-queued.
	Retried int64

	// Failed is the number of links abandoned after exhausting retries.
	Failed int64
}

// Summary snapshots the counters.
func (c *Counters) Summary() Summary {
	return Summary{
		Pages:     c.Pages.Load(),
		Scenes:    c.Scenes.Load(),
		Ordered:   c.Ordered.Load(),
		Skipped:   c.Skipped.Load(),
		Shortfall: c.Shortfall.Load(),
		Fetched:   c.Fetched.Load(),
		Uploaded:  c.Uploaded.Load(),
		Discarded: c.Discarded.Load(),
		Retried:   c.Retried.Load(),
		Failed:    c.Failed.Load(),
	}
}
