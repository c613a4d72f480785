package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"fwatch-go/internal/database/migrations"
	"fwatch-go/internal/fwatch"
	"fwatch-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// The latest-event cache answers the per-notification path lookup without
// touching the database. Entries expire so a long-idle path falls back to
// a fresh query.
const (
	latestCacheSize = 4096
	latestCacheTTL  = 10 * time.Minute
)

const defaultQueryLimit = 50

// SQLiteStore implements the fwatch.Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	latest *expirable.LRU[string, *model.EventRecord]
}

// NewSQLiteStore opens the activity database at path and migrates it to
// the current schema. path can be a file path or ":memory:" for an
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		latest: expirable.NewLRU[string, *model.EventRecord](latestCacheSize, nil, latestCacheTTL),
	}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the activity log needs. Exported for tools and tests that want a raw
// connection without the store on top.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer goroutine owns the store. A single pooled connection also
	// keeps :memory: databases coherent; every new connection to :memory:
	// is a fresh empty database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring database (%s): %w", pragma, err)
		}
	}

	return db, nil
}

// Event log operations

// AppendEvent appends one event row with its measurement and maintains the
// file identity and the period aggregate, all in a single transaction.
func (s *SQLiteStore) AppendEvent(ins fwatch.EventInsert) (*model.Event, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	fileID, err := resolveFileID(tx, ins)
	if err != nil {
		return nil, err
	}

	active := ins.TypeID != model.EventTypeDelete
	if _, err := tx.Exec("UPDATE files SET is_active = ? WHERE id = ?", active, fileID); err != nil {
		return nil, fmt.Errorf("updating file activity: %w", err)
	}

	name := filepath.Base(ins.Path)
	dir := filepath.Dir(ins.Path)
	res, err := tx.Exec(`
		INSERT INTO events (timestamp, event_type_id, file_id, file_path, file_name, directory)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ins.Timestamp, ins.TypeID, fileID, ins.Path, name, dir)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading event id: %w", err)
	}

	m := ins.Measurement
	m.EventID = eventID
	var blocks sql.NullInt64
	if m.BlockCount != nil {
		blocks = sql.NullInt64{Int64: *m.BlockCount, Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO measurements (event_id, inode, file_size, line_count, block_count)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, int64(m.Inode), m.FileSize, m.LineCount, blocks)
	if err != nil {
		return nil, fmt.Errorf("inserting measurement: %w", err)
	}

	if err := upsertAggregate(tx, fileID, ins); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	event := &model.Event{
		ID:          eventID,
		Timestamp:   ins.Timestamp,
		EventTypeID: ins.TypeID,
		FileID:      fileID,
		FilePath:    ins.Path,
		FileName:    name,
		Directory:   dir,
	}
	s.latest.Add(ins.Path, &model.EventRecord{
		Event:       *event,
		TypeCode:    model.EventTypeCode(ins.TypeID),
		TypeName:    model.EventTypeName(ins.TypeID),
		Measurement: m,
	})
	return event, nil
}

// resolveFileID finds the file identity an event belongs to, creating a
// fresh row when nothing matches. Inode 0 never matches an existing row:
// unknown identities must not merge.
func resolveFileID(tx *sql.Tx, ins fwatch.EventInsert) (int64, error) {
	if ins.FileID != 0 {
		if ins.RefreshInode && ins.Measurement.Inode != 0 {
			if _, err := tx.Exec("UPDATE files SET inode = ? WHERE id = ?", int64(ins.Measurement.Inode), ins.FileID); err != nil {
				return 0, fmt.Errorf("refreshing file inode: %w", err)
			}
		}
		return ins.FileID, nil
	}

	if ins.Measurement.Inode != 0 {
		var id int64
		err := tx.QueryRow("SELECT id FROM files WHERE inode = ? ORDER BY id DESC LIMIT 1", int64(ins.Measurement.Inode)).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("resolving file by inode: %w", err)
		}
	}

	res, err := tx.Exec("INSERT INTO files (inode, is_active) VALUES (?, TRUE)", int64(ins.Measurement.Inode))
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading file id: %w", err)
	}
	return id, nil
}

// Read queries

// recordColumns is the joined shape every read query returns. Every event
// carries exactly one measurement, written in the same transaction as the
// event, so an inner join never drops rows.
const recordColumns = `
	e.id, e.timestamp, e.event_type_id, e.file_id, e.file_path, e.file_name, e.directory,
	t.code, t.name,
	m.inode, m.file_size, m.line_count, m.block_count`

const selectRecords = `
	SELECT` + recordColumns + `
	FROM events e
	JOIN event_types t ON t.id = e.event_type_id
	JOIN measurements m ON m.event_id = e.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.EventRecord, error) {
	var rec model.EventRecord
	var inode int64
	var lines, blocks sql.NullInt64
	err := row.Scan(
		&rec.ID, &rec.Timestamp, &rec.EventTypeID, &rec.FileID, &rec.FilePath, &rec.FileName, &rec.Directory,
		&rec.TypeCode, &rec.TypeName,
		&inode, &rec.Measurement.FileSize, &lines, &blocks)
	if err != nil {
		return nil, err
	}
	rec.Measurement.EventID = rec.ID
	rec.Measurement.Inode = uint64(inode)
	rec.Measurement.LineCount = lines.Int64
	if blocks.Valid {
		v := blocks.Int64
		rec.Measurement.BlockCount = &v
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*model.EventRecord, error) {
	defer rows.Close()

	var records []*model.EventRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return records, nil
}

// LatestEventForPath returns the newest event recorded for the exact path,
// or nil when the path has never been seen.
func (s *SQLiteStore) LatestEventForPath(path string) (*model.EventRecord, error) {
	if rec, ok := s.latest.Get(path); ok {
		return rec, nil
	}

	row := s.db.QueryRow(selectRecords+" WHERE e.file_path = ? ORDER BY e.id DESC LIMIT 1", path)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding latest event for path: %w", err)
	}

	s.latest.Add(path, rec)
	return rec, nil
}

// LatestCreateByInode returns the newest create event at or after since
// whose measurement carries the inode, or nil.
func (s *SQLiteStore) LatestCreateByInode(inode uint64, since int64) (*model.EventRecord, error) {
	row := s.db.QueryRow(selectRecords+`
		WHERE e.event_type_id = ? AND m.inode = ? AND e.timestamp >= ?
		ORDER BY e.id DESC LIMIT 1`,
		model.EventTypeCreate, int64(inode), since)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding create by inode: %w", err)
	}
	return rec, nil
}

// LatestEvents returns up to limit events, newest first.
func (s *SQLiteStore) LatestEvents(limit int) ([]*model.EventRecord, error) {
	rows, err := s.db.Query(selectRecords+" ORDER BY e.id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing latest events: %w", err)
	}
	return collectRecords(rows)
}

// QueryEvents returns events matching the query, newest first.
func (s *SQLiteStore) QueryEvents(q fwatch.EventQuery) ([]*model.EventRecord, error) {
	var conds []string
	var args []any

	if len(q.TypeCodes) > 0 {
		placeholders := strings.Repeat("?, ", len(q.TypeCodes))
		conds = append(conds, "t.code IN ("+placeholders[:len(placeholders)-2]+")")
		for _, code := range q.TypeCodes {
			args = append(args, code)
		}
	}
	if q.Search != "" {
		conds = append(conds, "(e.file_name LIKE ? OR e.directory LIKE ?)")
		pattern := "%" + q.Search + "%"
		args = append(args, pattern, pattern)
	}
	if q.LatestPerFile {
		conds = append(conds, "e.id IN (SELECT MAX(id) FROM events GROUP BY directory, file_name)")
	}

	query := selectRecords
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.id DESC LIMIT ? OFFSET ?"

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return collectRecords(rows)
}

// FileHistory returns the full lifecycle of the file identity that
// currently owns the path, oldest first. Nil when the path is unknown.
func (s *SQLiteStore) FileHistory(path string, limit int) ([]*model.EventRecord, error) {
	latest, err := s.LatestEventForPath(path)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	query := selectRecords + " WHERE e.file_id = ? ORDER BY e.id"
	args := []any{latest.FileID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading file history: %w", err)
	}
	return collectRecords(rows)
}

// Statistics summarizes the stored log.
func (s *SQLiteStore) Statistics() (*fwatch.Statistics, error) {
	stats := &fwatch.Statistics{EventsByType: make(map[string]int64)}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM events", &stats.TotalEvents},
		{"SELECT COUNT(*) FROM files", &stats.TotalFiles},
		{"SELECT COUNT(*) FROM measurements", &stats.TotalMeasurements},
		{"SELECT COUNT(*) FROM aggregates", &stats.TotalAggregates},
		{"SELECT COUNT(*) FROM sessions", &stats.TotalSessions},
		{"SELECT COUNT(DISTINCT file_path) FROM events", &stats.DistinctPaths},
		{"SELECT COUNT(*) FROM files WHERE is_active", &stats.ActiveFiles},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}

	rows, err := s.db.Query(`
		SELECT t.code, COUNT(e.id)
		FROM event_types t
		LEFT JOIN events e ON e.event_type_id = t.id
		GROUP BY t.id, t.code`)
	if err != nil {
		return nil, fmt.Errorf("counting events by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scanning event type count: %w", err)
		}
		stats.EventsByType[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading event type counts: %w", err)
	}

	err = s.db.QueryRow("SELECT COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0) FROM events").
		Scan(&stats.FirstTimestamp, &stats.LastTimestamp)
	if err != nil {
		return nil, fmt.Errorf("reading time range: %w", err)
	}

	return stats, nil
}

// Session tracking

// CreateSession records the start of a monitoring run.
func (s *SQLiteStore) CreateSession(sessionID string, startedAt int64) (*model.Session, error) {
	res, err := s.db.Exec(`
		INSERT INTO sessions (session_id, started_at, events_recorded, status)
		VALUES (?, ?, 0, 'running')`,
		sessionID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}

	return &model.Session{
		ID:        id,
		SessionID: sessionID,
		StartedAt: startedAt,
		Status:    "running",
	}, nil
}

// FinishSession finalizes a monitoring run.
func (s *SQLiteStore) FinishSession(sessionID string, finishedAt int64, eventsRecorded int64, status string) error {
	_, err := s.db.Exec(`
		UPDATE sessions SET finished_at = ?, events_recorded = ?, status = ?
		WHERE session_id = ?`,
		finishedAt, eventsRecorded, status, sessionID)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given id, or nil if no such
// session has been recorded.
func (s *SQLiteStore) GetSession(sessionID string) (*model.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, started_at, finished_at, events_recorded, status
		FROM sessions WHERE session_id = ?`, sessionID)

	var sess model.Session
	var finished sql.NullInt64
	err := row.Scan(&sess.ID, &sess.SessionID, &sess.StartedAt, &finished, &sess.EventsRecorded, &sess.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if finished.Valid {
		v := finished.Int64
		sess.FinishedAt = &v
	}
	return &sess, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *SQLiteStore) ListSessions(limit int) ([]*model.Session, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, started_at, finished_at, events_recorded, status
		FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		var sess model.Session
		var finished sql.NullInt64
		if err := rows.Scan(&sess.ID, &sess.SessionID, &sess.StartedAt, &finished, &sess.EventsRecorded, &sess.Status); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if finished.Valid {
			v := finished.Int64
			sess.FinishedAt = &v
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

// Path returns the database file path (or ":memory:" for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// SnapshotTo writes a consistent copy of the database to destPath using
// VACUUM INTO.
func (s *SQLiteStore) SnapshotTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements the fwatch.Store interface
var _ fwatch.Store = (*SQLiteStore)(nil)
