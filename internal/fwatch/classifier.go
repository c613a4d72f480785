package fwatch

import (
	"fmt"
	"time"

	"fwatch-go/internal/model"
)

// Classifier turns raw notifications into lifecycle events and appends
// them to the store. It is synchronous and deterministic under a stub
// clock: given the same store contents, registry state, and probe results,
// the same notification always yields the same event.
type Classifier struct {
	store   Store
	pending *PendingRegistry
	calc    *Calculator
	prober  FileProber
	clock   Clock
	logger  Logger
	tuning  Tuning

	// strategies decide what an appearance means. Evaluated in order,
	// first match wins; the slice order is the precedence.
	strategies []appearedStrategy

	recorded int64
}

// Expiry tells the engine when a registered disappearance must be
// re-examined.
type Expiry struct {
	Seq uint64
	At  time.Time
}

// appearedContext carries one appearance through the strategy list.
type appearedContext struct {
	path string
	stat *FileStat // nil when the stat failed
	now  time.Time
}

func (a *appearedContext) inode() uint64 {
	if a.stat == nil {
		return 0
	}
	return a.stat.Inode
}

func (a *appearedContext) size() int64 {
	if a.stat == nil {
		return 0
	}
	return a.stat.Size
}

// appearedStrategy is one interpretation of an appearance. resolve returns
// nil to pass the appearance to the next strategy.
type appearedStrategy struct {
	name    string
	resolve func(c *Classifier, actx *appearedContext) (*EventInsert, error)
}

// NewClassifier creates a Classifier. The registry is shared with the
// engine, which schedules the expiries the classifier registers.
func NewClassifier(store Store, pending *PendingRegistry, calc *Calculator, prober FileProber, clock Clock, logger Logger, tuning Tuning) *Classifier {
	c := &Classifier{
		store:   store,
		pending: pending,
		calc:    calc,
		prober:  prober,
		clock:   clock,
		logger:  logger,
		tuning:  tuning,
	}
	c.strategies = []appearedStrategy{
		{name: "move-pending", resolve: (*Classifier).resolveMoveFromPending},
		{name: "restore", resolve: (*Classifier).resolveRestore},
		{name: "move-recent-create", resolve: (*Classifier).resolveMoveFromRecentCreate},
		{name: "create", resolve: (*Classifier).resolveCreate},
	}
	return c
}

// Recorded returns how many events this classifier has appended.
func (c *Classifier) Recorded() int64 { return c.recorded }

// HandleChanged records a modify event with a fresh measurement. A change
// to an existing file is always a modify; no correlation applies.
func (c *Classifier) HandleChanged(path string) error {
	now := c.clock.Now()
	m := c.calc.Measure(path)
	return c.append(EventInsert{
		TypeID:      model.EventTypeModify,
		Timestamp:   now.UnixMilli(),
		Path:        path,
		Measurement: m,
	})
}

// HandleDisappeared processes a disappearance. A path with no history
// becomes a delete immediately; a known path is registered as pending and
// the returned Expiry tells the engine when to call HandleExpiry for it.
func (c *Classifier) HandleDisappeared(path string) (*Expiry, error) {
	now := c.clock.Now()

	rec, err := c.store.LatestEventForPath(path)
	if err != nil {
		return nil, fmt.Errorf("looking up history for %s: %w", path, err)
	}
	if rec == nil {
		// Never seen this path; nothing to correlate against.
		err := c.append(EventInsert{
			TypeID:      model.EventTypeDelete,
			Timestamp:   now.UnixMilli(),
			Path:        path,
			Measurement: model.Measurement{},
		})
		return nil, err
	}

	deadline := now.Add(c.tuning.MoveThreshold)
	seq := c.pending.Register(path, rec.Measurement.Inode, deadline)
	c.logger.Debug("disappearance pending", "path", path, "inode", rec.Measurement.Inode)
	return &Expiry{Seq: seq, At: deadline}, nil
}

// HandleExpiry resolves a pending disappearance whose window has closed.
// If an appearance consumed the entry in the meantime this is a no-op;
// otherwise the disappearance becomes a delete carrying the registered
// inode.
func (c *Classifier) HandleExpiry(seq uint64) error {
	p := c.pending.TakeExpired(seq)
	if p == nil {
		return nil
	}
	now := c.clock.Now()
	return c.append(EventInsert{
		TypeID:      model.EventTypeDelete,
		Timestamp:   now.UnixMilli(),
		Path:        p.Path,
		Measurement: model.Measurement{Inode: p.Inode},
	})
}

// HandleAppeared classifies a settled appearance by running the strategy
// list. The stat happens once, up front; a failed stat downgrades the
// appearance to an unknown identity but never aborts classification.
func (c *Classifier) HandleAppeared(path string) error {
	now := c.clock.Now()

	st, err := c.prober.Stat(path)
	if err != nil {
		c.logger.Warn("stat failed during classification", "path", path, "error", err)
		st = nil
	}

	actx := &appearedContext{path: path, stat: st, now: now}
	for _, strat := range c.strategies {
		ins, err := strat.resolve(c, actx)
		if err != nil {
			return fmt.Errorf("%s strategy for %s: %w", strat.name, path, err)
		}
		if ins == nil {
			continue
		}
		return c.append(*ins)
	}
	return nil
}

// resolveMoveFromPending matches the appearance against a pending
// disappearance with the same inode. Consuming the entry settles the pair
// as one move recorded at the destination path.
func (c *Classifier) resolveMoveFromPending(actx *appearedContext) (*EventInsert, error) {
	p := c.pending.Consume(actx.inode(), actx.now)
	if p == nil {
		return nil, nil
	}
	c.logger.Debug("move correlated", "from", p.Path, "to", actx.path, "inode", p.Inode)
	return c.moveInsert(actx, p.Inode), nil
}

// resolveRestore matches the appearance against a recent delete at the
// same path. The delete's file identity carries over and its inode is
// refreshed, so the file's history continues across the gap. Size comes
// from the fresh stat; line and block counts are not recomputed.
func (c *Classifier) resolveRestore(actx *appearedContext) (*EventInsert, error) {
	rec, err := c.store.LatestEventForPath(actx.path)
	if err != nil {
		return nil, fmt.Errorf("looking up history: %w", err)
	}
	if rec == nil || rec.EventTypeID != model.EventTypeDelete {
		return nil, nil
	}
	age := actx.now.UnixMilli() - rec.Timestamp
	if age > c.tuning.RestoreTimeLimit.Milliseconds() {
		return nil, nil
	}
	return &EventInsert{
		TypeID:    model.EventTypeRestore,
		Timestamp: actx.now.UnixMilli(),
		Path:      actx.path,
		Measurement: model.Measurement{
			Inode:    actx.inode(),
			FileSize: actx.size(),
		},
		FileID:       rec.FileID,
		RefreshInode: true,
	}, nil
}

// resolveMoveFromRecentCreate catches the pair ordering the registry
// cannot: the create for the source path was already persisted when the
// rename landed, and the disappearance never made it into the registry.
func (c *Classifier) resolveMoveFromRecentCreate(actx *appearedContext) (*EventInsert, error) {
	inode := actx.inode()
	if inode == 0 {
		return nil, nil
	}
	since := actx.now.UnixMilli() - c.tuning.MoveThreshold.Milliseconds()
	rec, err := c.store.LatestCreateByInode(inode, since)
	if err != nil {
		return nil, fmt.Errorf("scanning recent creates: %w", err)
	}
	if rec == nil || rec.FilePath == actx.path {
		return nil, nil
	}
	c.logger.Debug("move correlated from recent create", "from", rec.FilePath, "to", actx.path, "inode", inode)
	return c.moveInsert(actx, inode), nil
}

// resolveCreate is the default: a genuinely new file.
func (c *Classifier) resolveCreate(actx *appearedContext) (*EventInsert, error) {
	m := c.calc.Measure(actx.path)
	return &EventInsert{
		TypeID:      model.EventTypeCreate,
		Timestamp:   actx.now.UnixMilli(),
		Path:        actx.path,
		Measurement: m,
	}, nil
}

// moveInsert builds the move event for the destination path. The
// measurement inode is the correlated identity even when the fresh
// measurement could not re-establish it.
func (c *Classifier) moveInsert(actx *appearedContext, inode uint64) *EventInsert {
	m := c.calc.Measure(actx.path)
	m.Inode = inode
	return &EventInsert{
		TypeID:      model.EventTypeMove,
		Timestamp:   actx.now.UnixMilli(),
		Path:        actx.path,
		Measurement: m,
	}
}

// append persists one classified event. Persistence failures propagate to
// the engine, which logs and drops; the classifier holds no retry state.
func (c *Classifier) append(ins EventInsert) error {
	if _, err := c.store.AppendEvent(ins); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	c.recorded++
	return nil
}
