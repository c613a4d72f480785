package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"fwatch-go/internal/fwatch"
)

// Notifications queue here while the engine is busy classifying; the
// buffer absorbs bursts like a branch checkout without blocking fsnotify.
const eventBufferSize = 1024

var (
	// ErrNoRootsConfigured indicates no watch roots were specified.
	ErrNoRootsConfigured = errors.New("no roots configured for watching")

	// ErrRootNotExist indicates a watch root does not exist.
	ErrRootNotExist = errors.New("watch root does not exist")

	// ErrRootNotDirectory indicates a watch root is not a directory.
	ErrRootNotDirectory = errors.New("watch root is not a directory")
)

// Source watches directory trees with fsnotify and converts its operations
// into raw notification kinds. It keeps the recursive watch set current as
// directories come and go, and resolves directory-level changes itself:
// only file paths reach the engine. All timing decisions (classify delay,
// move correlation) belong to the engine; the source only translates.
type Source struct {
	roots  []string
	filter fwatch.PathFilter
	logger fwatch.Logger

	watcher *fsnotify.Watcher
	events  chan fwatch.Notification
	errs    chan error

	// watched tracks directories currently under a watch. Start populates
	// it before the run goroutine exists; afterwards only run touches it.
	watched map[string]bool

	stopOnce sync.Once
}

// NewSource creates a watch source for the given roots. Every root must
// exist and be a directory; filter may be nil to exclude nothing.
func NewSource(roots []string, filter fwatch.PathFilter, logger fwatch.Logger) (*Source, error) {
	if err := validateRoots(roots); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = fwatch.NewNopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Source{
		roots:   roots,
		filter:  filter,
		logger:  logger,
		watcher: watcher,
		events:  make(chan fwatch.Notification, eventBufferSize),
		errs:    make(chan error, 16),
		watched: make(map[string]bool),
	}, nil
}

func validateRoots(roots []string) error {
	if len(roots) == 0 {
		return ErrNoRootsConfigured
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrRootNotExist, root)
			}
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
		}
	}
	return nil
}

// Start registers watches for every configured root and begins forwarding
// notifications. The returned error covers watch registration only;
// runtime errors surface on Errors.
func (s *Source) Start(ctx context.Context) error {
	for _, root := range s.roots {
		if err := s.watchTree(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}

	go s.run(ctx)
	return nil
}

// Events returns the notification channel. It closes when the context
// given to Start is cancelled or Stop is called.
func (s *Source) Events() <-chan fwatch.Notification {
	return s.events
}

// Errors returns the channel of non-fatal watch errors.
func (s *Source) Errors() <-chan error {
	return s.errs
}

// Stop closes the underlying watcher, which ends the forwarding loop and
// closes the notification channels. Safe to call multiple times.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.watcher.Close()
	})
}

// watchTree adds a directory and all its subdirectories to the watch set.
func (s *Source) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if s.filter != nil && s.filter.Excluded(path) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return err
		}
		s.watched[path] = true
		return nil
	})
}

func (s *Source) run(ctx context.Context) {
	defer close(s.errs)
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errs <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Source) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if s.filter != nil && s.filter.Excluded(path) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			s.adoptDirectory(ctx, path)
			return
		}
	}

	if s.watched[path] {
		// A directory-level change. The watch drops with the directory;
		// files inside report their own events.
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			delete(s.watched, path)
		}
		return
	}

	s.send(ctx, fwatch.Notification{Kind: mapOperation(ev.Op), Path: path})
}

// adoptDirectory starts watching a directory that appeared inside the
// tree and reports the files it already contains: they arrived before
// their watch existed, so no create will ever fire for them.
func (s *Source) adoptDirectory(ctx context.Context, dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if s.filter != nil && s.filter.Excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("adding watch for new directory failed", "path", path, "error", err)
				return nil
			}
			s.watched[path] = true
			return nil
		}
		if d.Type().IsRegular() {
			s.send(ctx, fwatch.Notification{Kind: fwatch.Appeared, Path: path})
		}
		return nil
	})
}

func (s *Source) send(ctx context.Context, n fwatch.Notification) {
	select {
	case s.events <- n:
	case <-ctx.Done():
	}
}

// opMappings converts fsnotify operations to notification kinds.
// Order matters: first match wins, so a combined create+write reports
// as an appearance.
var opMappings = []struct {
	op   fsnotify.Op
	kind fwatch.Kind
}{
	{fsnotify.Create, fwatch.Appeared},
	{fsnotify.Write, fwatch.Changed},
	{fsnotify.Remove, fwatch.Disappeared},
	{fsnotify.Rename, fwatch.Disappeared},
	{fsnotify.Chmod, fwatch.Changed},
}

func mapOperation(op fsnotify.Op) fwatch.Kind {
	for _, m := range opMappings {
		if op.Has(m.op) {
			return m.kind
		}
	}
	return fwatch.Changed
}

// Compile-time check that Source implements the fwatch.WatchSource interface
var _ fwatch.WatchSource = (*Source)(nil)
