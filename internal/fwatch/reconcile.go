package fwatch

import (
	"fmt"

	"fwatch-go/internal/model"
)

// Reconciler closes the gap left by downtime: files that were deleted
// while the monitor was not running still need their delete events. It
// examines the most recent slice of the log, reduces it to the latest
// event per path, and synthesizes one delete for every path that should
// exist but does not.
type Reconciler struct {
	store  Store
	prober FileProber
	clock  Clock
	logger Logger
	limit  int
}

// NewReconciler creates a Reconciler examining up to limit recent events.
func NewReconciler(store Store, prober FileProber, clock Clock, logger Logger, limit int) *Reconciler {
	return &Reconciler{
		store:  store,
		prober: prober,
		clock:  clock,
		logger: logger,
		limit:  limit,
	}
}

// Run performs one reconciliation pass and returns how many deletes it
// synthesized. Paths whose latest event is already a delete are left
// untouched however long they have been gone. Runs before the initial
// scan so the synthesized deletes precede the scan's finds in the log.
func (r *Reconciler) Run() (int64, error) {
	recs, err := r.store.LatestEvents(r.limit)
	if err != nil {
		return 0, fmt.Errorf("loading recent events: %w", err)
	}

	now := r.clock.Now().UnixMilli()
	seen := make(map[string]bool, len(recs))
	var synthesized int64

	// recs is newest first, so the first record per path is its latest.
	for _, rec := range recs {
		if seen[rec.FilePath] {
			continue
		}
		seen[rec.FilePath] = true

		if rec.EventTypeID == model.EventTypeDelete {
			continue
		}
		if r.prober.Exists(rec.FilePath) {
			continue
		}

		ins := EventInsert{
			TypeID:      model.EventTypeDelete,
			Timestamp:   now,
			Path:        rec.FilePath,
			Measurement: model.Measurement{Inode: rec.Measurement.Inode},
		}
		if _, err := r.store.AppendEvent(ins); err != nil {
			r.logger.Error("recording reconciliation delete failed", "path", rec.FilePath, "error", err)
			continue
		}
		r.logger.Info("reconciled missing file", "path", rec.FilePath)
		synthesized++
	}

	if synthesized > 0 {
		r.logger.Info("reconciliation complete", "synthesized", synthesized, "examined", len(recs))
	}
	return synthesized, nil
}
