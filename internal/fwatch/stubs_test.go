package fwatch

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fwatch-go/internal/model"
)

// Shared test doubles for the engine, classifier, and reconciler tests.
// They live in the package so tests can drive the loop step by step
// without real timers or a real database.

type stubClock struct {
	now time.Time
}

func newStubClock(now time.Time) *stubClock { return &stubClock{now: now} }

func (c *stubClock) Now() time.Time { return c.now }

func (c *stubClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type stubFile struct {
	inode   uint64
	content string
}

// stubProber is an in-memory FileProber. Paths map to files; missing paths
// fail Stat the way a real filesystem would.
type stubProber struct {
	files   map[string]stubFile
	readErr map[string]error
}

func newStubProber() *stubProber {
	return &stubProber{
		files:   make(map[string]stubFile),
		readErr: make(map[string]error),
	}
}

func (p *stubProber) add(path string, inode uint64, content string) {
	p.files[path] = stubFile{inode: inode, content: content}
}

func (p *stubProber) remove(path string) {
	delete(p.files, path)
}

func (p *stubProber) Stat(path string) (*FileStat, error) {
	f, ok := p.files[path]
	if !ok {
		return nil, errors.New("stat " + path + ": no such file")
	}
	return &FileStat{Inode: f.inode, Size: int64(len(f.content))}, nil
}

func (p *stubProber) ReadHead(path string, limit int) ([]byte, error) {
	if err := p.readErr[path]; err != nil {
		return nil, err
	}
	f, ok := p.files[path]
	if !ok {
		return nil, errors.New("open " + path + ": no such file")
	}
	if len(f.content) > limit {
		return []byte(f.content[:limit]), nil
	}
	return []byte(f.content), nil
}

func (p *stubProber) Exists(path string) bool {
	_, ok := p.files[path]
	return ok
}

func (p *stubProber) Walk(root string, filter PathFilter, fn func(path string) error) error {
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		if filter != nil && filter.Excluded(path) {
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}

// stubStore is an in-memory Store recording every append. It resolves file
// identities by inode the way the real store does, which the move and
// restore tests depend on.
type stubStore struct {
	records    []*model.EventRecord
	inserts    []EventInsert
	byPath     map[string]*model.EventRecord
	fileByNode map[uint64]int64
	nextID     int64
	nextFileID int64
	appendErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		byPath:     make(map[string]*model.EventRecord),
		fileByNode: make(map[uint64]int64),
	}
}

func (s *stubStore) AppendEvent(ins EventInsert) (*model.Event, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}

	fileID := ins.FileID
	if fileID == 0 {
		if ins.Measurement.Inode != 0 {
			if id, ok := s.fileByNode[ins.Measurement.Inode]; ok {
				fileID = id
			}
		}
		if fileID == 0 {
			s.nextFileID++
			fileID = s.nextFileID
			if ins.Measurement.Inode != 0 {
				s.fileByNode[ins.Measurement.Inode] = fileID
			}
		}
	} else if ins.RefreshInode && ins.Measurement.Inode != 0 {
		s.fileByNode[ins.Measurement.Inode] = fileID
	}

	s.nextID++
	m := ins.Measurement
	m.EventID = s.nextID
	rec := &model.EventRecord{
		Event: model.Event{
			ID:          s.nextID,
			Timestamp:   ins.Timestamp,
			EventTypeID: ins.TypeID,
			FileID:      fileID,
			FilePath:    ins.Path,
			FileName:    filepath.Base(ins.Path),
			Directory:   filepath.Dir(ins.Path),
		},
		TypeCode:    model.EventTypeCode(ins.TypeID),
		Measurement: m,
	}
	s.records = append(s.records, rec)
	s.inserts = append(s.inserts, ins)
	s.byPath[ins.Path] = rec
	return &rec.Event, nil
}

func (s *stubStore) LatestEventForPath(path string) (*model.EventRecord, error) {
	return s.byPath[path], nil
}

func (s *stubStore) LatestCreateByInode(inode uint64, since int64) (*model.EventRecord, error) {
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if rec.EventTypeID == model.EventTypeCreate && rec.Measurement.Inode == inode && rec.Timestamp >= since {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *stubStore) LatestEvents(limit int) ([]*model.EventRecord, error) {
	var out []*model.EventRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *stubStore) QueryEvents(q EventQuery) ([]*model.EventRecord, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 50
	}
	var out []*model.EventRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *stubStore) FileHistory(path string, limit int) ([]*model.EventRecord, error) {
	latest := s.byPath[path]
	if latest == nil {
		return nil, nil
	}
	var out []*model.EventRecord
	for _, rec := range s.records {
		if rec.FileID == latest.FileID {
			out = append(out, rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) Statistics() (*Statistics, error) {
	stats := &Statistics{EventsByType: make(map[string]int64)}
	stats.TotalEvents = int64(len(s.records))
	for _, rec := range s.records {
		stats.EventsByType[rec.TypeCode]++
	}
	if len(s.records) > 0 {
		stats.FirstTimestamp = s.records[0].Timestamp
		stats.LastTimestamp = s.records[len(s.records)-1].Timestamp
	}
	return stats, nil
}

func (s *stubStore) CreateSession(sessionID string, startedAt int64) (*model.Session, error) {
	return &model.Session{SessionID: sessionID, StartedAt: startedAt, Status: "running"}, nil
}

func (s *stubStore) FinishSession(string, int64, int64, string) error { return nil }

func (s *stubStore) GetSession(string) (*model.Session, error) { return nil, nil }

func (s *stubStore) ListSessions(int) ([]*model.Session, error) { return nil, nil }

func (s *stubStore) CheckMigrations() error { return nil }

func (s *stubStore) SnapshotTo(string) error { return nil }

func (s *stubStore) Close() error { return nil }

// lastInsert returns the most recent append, or nil when nothing was
// recorded.
func (s *stubStore) lastInsert() *EventInsert {
	if len(s.inserts) == 0 {
		return nil
	}
	return &s.inserts[len(s.inserts)-1]
}
