package fwatch

import (
	"context"
	"fmt"
	"time"

	"fwatch-go/internal/model"
)

// Engine runs the monitor: one goroutine consuming raw notifications and
// the delay queue cooperatively. Classification, correlation, and
// persistence all happen on this goroutine, so none of the engine's state
// needs locking and tests can drive it step by step.
type Engine struct {
	store      Store
	source     WatchSource
	classifier *Classifier
	reconciler *Reconciler
	filter     PathFilter
	clock      Clock
	logger     Logger
	tuning     Tuning
	roots      []string

	sched *schedule
	// classifyQueued holds paths with a classification already scheduled.
	// Repeated appearance notifications inside the delay are one settling
	// burst and classify once, against the settled state.
	classifyQueued map[string]bool
	scanned        int64
	synced         int64
}

// NewEngine creates an Engine over the given roots. The classifier brings
// its registry, calculator, and prober with it.
func NewEngine(store Store, source WatchSource, classifier *Classifier, filter PathFilter, clock Clock, logger Logger, tuning Tuning, roots []string) *Engine {
	return &Engine{
		store:          store,
		source:         source,
		classifier:     classifier,
		reconciler:     NewReconciler(store, classifier.prober, clock, logger, tuning.ReconcileLimit),
		filter:         filter,
		clock:          clock,
		logger:         logger,
		tuning:         tuning,
		roots:          roots,
		sched:          newSchedule(),
		classifyQueued: make(map[string]bool),
	}
}

// Recorded returns how many events this run has appended so far, across
// reconciliation, the initial scan, and live classification.
func (e *Engine) Recorded() int64 {
	return e.synced + e.scanned + e.classifier.Recorded()
}

// Run drives the engine until the context is cancelled: reconcile, scan,
// then the live loop. On return the delay queue and the pending registry
// are empty, so nothing fires after shutdown. Only a failing watch source
// is a run error; everything else is logged and survived.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.source.Start(ctx); err != nil {
		return fmt.Errorf("starting watch source: %w", err)
	}
	defer e.source.Stop()
	defer e.shutdown()

	synced, err := e.reconciler.Run()
	if err != nil {
		e.logger.Error("reconciliation failed", "error", err)
	}
	e.synced = synced

	if err := e.initialScan(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		e.logger.Error("initial scan failed", "error", err)
	}

	e.logger.Info("monitoring", "roots", len(e.roots), "scanned", e.scanned, "reconciled", e.synced)
	e.loop(ctx)
	return nil
}

// shutdown clears deferred work so no timer-driven deletes or
// classifications outlive the run.
func (e *Engine) shutdown() {
	e.sched.Clear()
	e.classifier.pending.Clear()
	e.classifyQueued = make(map[string]bool)
}

// initialScan walks every root and appends one find event per discovered
// file, pausing between batches so the store is never flooded. Live
// notifications arriving during the scan buffer in the source channel and
// are processed afterwards in arrival order.
func (e *Engine) initialScan(ctx context.Context) error {
	batch := 0
	for _, root := range e.roots {
		err := e.classifier.prober.Walk(root, e.filter, func(path string) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			m := e.classifier.calc.Measure(path)
			ins := EventInsert{
				TypeID:      model.EventTypeFind,
				Timestamp:   e.clock.Now().UnixMilli(),
				Path:        path,
				Measurement: m,
			}
			if _, err := e.store.AppendEvent(ins); err != nil {
				e.logger.Error("recording find failed", "path", path, "error", err)
				return nil
			}
			e.scanned++

			batch++
			if batch >= e.tuning.ScanBatchSize {
				batch = 0
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(e.tuning.ScanBatchPause):
				}
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.logger.Error("scanning root failed", "root", root, "error", err)
		}
	}
	return nil
}

// loop is the live phase: drain due deferred work, then wait for the next
// notification, watch error, or deadline.
func (e *Engine) loop(ctx context.Context) {
	events := e.source.Events()
	errs := e.source.Errors()

	for {
		e.processDue()

		var timer *time.Timer
		var due <-chan time.Time
		if at, ok := e.sched.NextAt(); ok {
			wait := at.Sub(e.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case n, ok := <-events:
			if timer != nil {
				timer.Stop()
			}
			if !ok {
				return
			}
			e.handleNotification(n)
		case err := <-errs:
			if timer != nil {
				timer.Stop()
			}
			if err != nil {
				e.logger.Warn("watch source error", "error", err)
			}
		case <-due:
		}
	}
}

// handleNotification dispatches one raw notification. Appearances defer
// by the classify delay so rapid successions settle; changes and
// disappearances classify immediately.
func (e *Engine) handleNotification(n Notification) {
	now := e.clock.Now()

	switch n.Kind {
	case Appeared:
		if e.classifyQueued[n.Path] {
			return
		}
		e.classifyQueued[n.Path] = true
		e.sched.Push(&scheduleItem{
			at:   now.Add(e.tuning.ClassifyDelay),
			kind: itemClassifyAppearance,
			path: n.Path,
		})
	case Changed:
		if err := e.classifier.HandleChanged(n.Path); err != nil {
			e.logger.Error("recording modify failed", "path", n.Path, "error", err)
		}
	case Disappeared:
		exp, err := e.classifier.HandleDisappeared(n.Path)
		if err != nil {
			e.logger.Error("recording disappearance failed", "path", n.Path, "error", err)
			return
		}
		if exp != nil {
			e.sched.Push(&scheduleItem{
				at:   exp.At,
				kind: itemExpireDisappearance,
				seq:  exp.Seq,
			})
		}
	}
}

// processDue runs every deferred action whose deadline has passed, in
// deadline order. A failed action is logged and dropped; the queue never
// retries.
func (e *Engine) processDue() {
	now := e.clock.Now()
	for {
		item := e.sched.PopDue(now)
		if item == nil {
			return
		}
		switch item.kind {
		case itemClassifyAppearance:
			delete(e.classifyQueued, item.path)
			if err := e.classifier.HandleAppeared(item.path); err != nil {
				e.logger.Error("classifying appearance failed", "path", item.path, "error", err)
			}
		case itemExpireDisappearance:
			if err := e.classifier.HandleExpiry(item.seq); err != nil {
				e.logger.Error("recording delete failed", "seq", item.seq, "error", err)
			}
		}
	}
}
