package model

// EventType is a row of the event_types catalog. The six rows are seeded
// by migration and their ids are referenced by every event; they are never
// renumbered once any event exists.
type EventType struct {
	ID          int64
	Code        string // "find", "create", "modify", "delete", "move", "restore"
	Name        string
	Description string
}

// Event type ids as seeded. Code refers to these constants rather than
// looking the catalog up at runtime.
const (
	EventTypeFind    int64 = 1
	EventTypeCreate  int64 = 2
	EventTypeModify  int64 = 3
	EventTypeDelete  int64 = 4
	EventTypeMove    int64 = 5
	EventTypeRestore int64 = 6
)

// EventTypeCode returns the catalog code for a seeded event type id, or
// "unknown" for an id outside the catalog.
func EventTypeCode(id int64) string {
	switch id {
	case EventTypeFind:
		return "find"
	case EventTypeCreate:
		return "create"
	case EventTypeModify:
		return "modify"
	case EventTypeDelete:
		return "delete"
	case EventTypeMove:
		return "move"
	case EventTypeRestore:
		return "restore"
	}
	return "unknown"
}

// EventTypeName returns the catalog display name for a seeded event type id.
func EventTypeName(id int64) string {
	switch id {
	case EventTypeFind:
		return "Find"
	case EventTypeCreate:
		return "Create"
	case EventTypeModify:
		return "Modify"
	case EventTypeDelete:
		return "Delete"
	case EventTypeMove:
		return "Move"
	case EventTypeRestore:
		return "Restore"
	}
	return "Unknown"
}

// File is a monitored file identity, tracked by inode across renames.
// Rows are never deleted; IsActive flips to false when the file is deleted
// and back to true when it reappears.
type File struct {
	ID       int64
	Inode    uint64 // 0 when the identity could not be established
	IsActive bool
}

// Event is one append-only row of the activity log.
type Event struct {
	ID          int64
	Timestamp   int64 // Unix milliseconds
	EventTypeID int64
	FileID      int64
	FilePath    string // absolute path at event time
	FileName    string // base name
	Directory   string // parent directory
}

// Measurement is the point-in-time content metrics attached to an event.
// Exactly one exists per event, written in the same transaction.
type Measurement struct {
	EventID    int64
	Inode      uint64
	FileSize   int64
	LineCount  int64  // 0 for binary content
	BlockCount *int64 // nil when the file type has no structural notion
}

// EventRecord is an event joined with its type code and measurement,
// the shape read queries return.
type EventRecord struct {
	Event
	TypeCode    string
	TypeName    string
	Measurement Measurement
}

// Aggregate is the per-file, per-period rollup derived from events.
// It is maintained incrementally in the same transaction as each insert
// and never consulted during classification.
type Aggregate struct {
	ID          int64
	FileID      int64
	PeriodStart int64 // Unix milliseconds, start of UTC day

	TotalSize   int64
	TotalLines  int64
	TotalBlocks int64

	TotalEvents   int64
	TotalFinds    int64
	TotalCreates  int64
	TotalModifies int64
	TotalDeletes  int64
	TotalMoves    int64
	TotalRestores int64

	FirstEventTimestamp int64
	LastEventTimestamp  int64

	FirstSize int64
	MaxSize   int64
	LastSize  int64

	FirstLines int64
	MaxLines   int64
	LastLines  int64

	FirstBlocks int64
	MaxBlocks   int64
	LastBlocks  int64

	DominantEventType int64
	LastEventTypeID   int64
	LastUpdated       int64
	CalculationMethod string
}

// Session is one run of the monitor engine. The session id versions
// archive uploads produced at shutdown.
type Session struct {
	ID             int64
	SessionID      string // UUID
	StartedAt      int64  // Unix milliseconds
	FinishedAt     *int64 // nil while running
	EventsRecorded int64
	Status         string // "running", "finished", "failed"
}
