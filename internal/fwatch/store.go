package fwatch

import "fwatch-go/internal/model"

// EventInsert is one classified event ready to append to the log.
type EventInsert struct {
	TypeID      int64
	Timestamp   int64 // Unix milliseconds
	Path        string
	Measurement model.Measurement

	// FileID pins the event to an existing file identity. Zero means the
	// store resolves the identity from the measurement inode instead.
	FileID int64

	// RefreshInode updates the pinned file row's inode to the measurement
	// inode. Only meaningful when FileID is set; a restore uses this to
	// carry the identity over to the recreated file.
	RefreshInode bool
}

// EventQuery filters read access to the event log.
type EventQuery struct {
	TypeCodes     []string // empty matches all types
	Search        string   // substring match on file name or directory
	Limit         int      // 0 means the store default
	Offset        int
	LatestPerFile bool // collapse to the newest event per (directory, name)
}

// Statistics summarizes the stored activity log.
type Statistics struct {
	TotalEvents       int64
	TotalFiles        int64
	TotalMeasurements int64
	TotalAggregates   int64
	TotalSessions     int64

	EventsByType map[string]int64

	FirstTimestamp int64 // 0 when the log is empty
	LastTimestamp  int64

	DistinctPaths int64
	ActiveFiles   int64
}

// Store is the persistence boundary of the engine. Events are append-only:
// nothing ever updates or deletes an event row, and every append carries
// its measurement and aggregate maintenance in one transaction.
type Store interface {
	// AppendEvent appends one event with its measurement, resolves or
	// creates the file identity, and updates the period aggregate, all in
	// a single transaction.
	AppendEvent(ins EventInsert) (*model.Event, error)

	// LatestEventForPath returns the newest event recorded for the exact
	// path, or nil when the path has never been seen.
	LatestEventForPath(path string) (*model.EventRecord, error)

	// LatestCreateByInode returns the newest create event at or after the
	// given timestamp whose measurement carries the inode, or nil.
	LatestCreateByInode(inode uint64, since int64) (*model.EventRecord, error)

	// LatestEvents returns up to limit events, newest first.
	LatestEvents(limit int) ([]*model.EventRecord, error)

	// QueryEvents returns events matching the query, newest first.
	QueryEvents(q EventQuery) ([]*model.EventRecord, error)

	// FileHistory returns the full lifecycle of the file identity that
	// currently owns the path, oldest first. Nil when the path is unknown.
	FileHistory(path string, limit int) ([]*model.EventRecord, error)

	// Statistics summarizes the stored log.
	Statistics() (*Statistics, error)

	// Session lifecycle

	// CreateSession records the start of a monitoring run.
	CreateSession(sessionID string, startedAt int64) (*model.Session, error)

	// FinishSession finalizes a monitoring run.
	FinishSession(sessionID string, finishedAt int64, eventsRecorded int64, status string) error

	// GetSession returns the session with the given id, or nil when no
	// such session has been recorded.
	GetSession(sessionID string) (*model.Session, error)

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(limit int) ([]*model.Session, error)

	// CheckMigrations verifies the store schema is up to date.
	CheckMigrations() error

	// SnapshotTo writes a consistent copy of the store to destPath.
	SnapshotTo(destPath string) error

	// Close closes the store.
	Close() error
}
