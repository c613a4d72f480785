package fwatch

import "time"

// Tuning holds the timing and batching knobs of the classification engine.
// The defaults encode the windows the classification heuristics were
// designed around; changing MoveThreshold or ClassifyDelay changes which
// raw sequences correlate into moves.
type Tuning struct {
	// MoveThreshold is how long a disappearance waits for an appearance of
	// the same inode before it becomes a delete.
	MoveThreshold time.Duration

	// ClassifyDelay is how long an appearance settles before classification.
	// Rapid successions (editor save dances) resolve within this window.
	ClassifyDelay time.Duration

	// RestoreTimeLimit is how far back a delete at the same path may lie
	// for a new appearance to count as a restore.
	RestoreTimeLimit time.Duration

	// ScanBatchSize is how many find events the initial scan appends
	// before pausing.
	ScanBatchSize int

	// ScanBatchPause is the pause between initial scan batches.
	ScanBatchPause time.Duration

	// ReconcileLimit is how many recent events startup reconciliation
	// examines.
	ReconcileLimit int
}

// DefaultTuning returns the standard engine timing.
func DefaultTuning() Tuning {
	return Tuning{
		MoveThreshold:    100 * time.Millisecond,
		ClassifyDelay:    50 * time.Millisecond,
		RestoreTimeLimit: 5 * time.Minute,
		ScanBatchSize:    10,
		ScanBatchPause:   100 * time.Millisecond,
		ReconcileLimit:   1000,
	}
}
