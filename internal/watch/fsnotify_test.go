package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fwatch-go/internal/fwatch"
)

func TestNewSource_Validation(t *testing.T) {
	t.Run("no roots", func(t *testing.T) {
		_, err := NewSource(nil, nil, nil)
		if !errors.Is(err, ErrNoRootsConfigured) {
			t.Errorf("error = %v, want ErrNoRootsConfigured", err)
		}
	})

	t.Run("nonexistent root", func(t *testing.T) {
		_, err := NewSource([]string{"/nonexistent/fwatch-test"}, nil, nil)
		if !errors.Is(err, ErrRootNotExist) {
			t.Errorf("error = %v, want ErrRootNotExist", err)
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		mustWrite(t, path, "x")

		_, err := NewSource([]string{path}, nil, nil)
		if !errors.Is(err, ErrRootNotDirectory) {
			t.Errorf("error = %v, want ErrRootNotDirectory", err)
		}
	})
}

func TestSource_ReportsAppearance(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	path := filepath.Join(dir, "a.txt")
	mustWrite(t, path, "hello")

	n := nextMatching(t, src, func(n fwatch.Notification) bool { return n.Path == path })
	if n.Kind != fwatch.Appeared {
		t.Errorf("Kind = %v, want appeared", n.Kind)
	}
}

func TestSource_ReportsChange(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	path := filepath.Join(dir, "a.txt")
	mustWrite(t, path, "hello")
	drain(src, 250*time.Millisecond)

	mustWrite(t, path, "hello again")

	n := nextMatching(t, src, func(n fwatch.Notification) bool { return n.Path == path })
	if n.Kind != fwatch.Changed {
		t.Errorf("Kind = %v, want changed", n.Kind)
	}
}

func TestSource_ReportsDisappearance(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	path := filepath.Join(dir, "a.txt")
	mustWrite(t, path, "hello")
	drain(src, 250*time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing file: %v", err)
	}

	n := nextMatching(t, src, func(n fwatch.Notification) bool { return n.Path == path })
	if n.Kind != fwatch.Disappeared {
		t.Errorf("Kind = %v, want disappeared", n.Kind)
	}
}

func TestSource_RenameReportsBothHalves(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	mustWrite(t, oldPath, "hello")
	drain(src, 250*time.Millisecond)

	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("renaming file: %v", err)
	}

	sawOld := false
	n := nextMatching(t, src, func(n fwatch.Notification) bool {
		if n.Path == oldPath && n.Kind == fwatch.Disappeared {
			sawOld = true
		}
		return n.Path == newPath
	})
	if n.Kind != fwatch.Appeared {
		t.Errorf("new path Kind = %v, want appeared", n.Kind)
	}
	if !sawOld {
		t.Error("old path never reported as disappeared")
	}
}

func TestSource_ExcludedPathsAreSilent(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, []string{"*.tmp"})

	tmpPath := filepath.Join(dir, "scratch.tmp")
	txtPath := filepath.Join(dir, "keep.txt")
	mustWrite(t, tmpPath, "x")
	mustWrite(t, txtPath, "x")

	n := nextMatching(t, src, func(n fwatch.Notification) bool {
		if n.Path == tmpPath {
			t.Fatalf("excluded path surfaced: %v", n)
		}
		return n.Path == txtPath
	})
	if n.Kind != fwatch.Appeared {
		t.Errorf("Kind = %v, want appeared", n.Kind)
	}
}

func TestSource_AdoptsDirectoryMovedIn(t *testing.T) {
	dir := t.TempDir()
	staging := t.TempDir()
	src := startTestSource(t, dir, nil)

	// Prepare a populated directory outside the tree and move it in.
	stagedDir := filepath.Join(staging, "sub")
	if err := os.Mkdir(stagedDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mustWrite(t, filepath.Join(stagedDir, "existing.txt"), "x")

	movedDir := filepath.Join(dir, "sub")
	if err := os.Rename(stagedDir, movedDir); err != nil {
		t.Fatalf("moving directory in: %v", err)
	}

	existing := filepath.Join(movedDir, "existing.txt")
	n := nextMatching(t, src, func(n fwatch.Notification) bool { return n.Path == existing })
	if n.Kind != fwatch.Appeared {
		t.Errorf("pre-existing file Kind = %v, want appeared", n.Kind)
	}

	// The moved directory is now watched: new files inside report too.
	fresh := filepath.Join(movedDir, "fresh.txt")
	mustWrite(t, fresh, "x")
	n = nextMatching(t, src, func(n fwatch.Notification) bool { return n.Path == fresh })
	if n.Kind != fwatch.Appeared {
		t.Errorf("new file in adopted directory Kind = %v, want appeared", n.Kind)
	}
}

func TestSource_DirectoryEventsAreSuppressed(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	drain(src, 250*time.Millisecond)

	if err := os.Remove(sub); err != nil {
		t.Fatalf("rmdir: %v", err)
	}

	deadline := time.After(400 * time.Millisecond)
	for {
		select {
		case n, ok := <-src.Events():
			if !ok {
				return
			}
			if n.Path == sub {
				t.Fatalf("directory surfaced as file notification: %v", n)
			}
		case <-deadline:
			return
		}
	}
}

func TestSource_StopClosesChannels(t *testing.T) {
	dir := t.TempDir()
	src := startTestSource(t, dir, nil)

	src.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-src.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel still open after Stop")
		}
	}
}

// startTestSource builds a Source over dir and starts it, stopping it again
// when the test finishes.
func startTestSource(t *testing.T, dir string, excludePatterns []string) *Source {
	t.Helper()

	var filter fwatch.PathFilter
	if len(excludePatterns) > 0 {
		ex, err := CompileExclusions(excludePatterns)
		if err != nil {
			t.Fatalf("CompileExclusions() error = %v", err)
		}
		filter = ex
	}

	src, err := NewSource([]string{dir}, filter, fwatch.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Cleanup(func() {
		cancel()
		src.Stop()
	})
	return src
}

// nextMatching reads notifications until want returns true, failing the
// test after a generous timeout.
func nextMatching(t *testing.T, src *Source, want func(fwatch.Notification) bool) fwatch.Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-src.Events():
			if !ok {
				t.Fatal("event channel closed while waiting")
			}
			if want(n) {
				return n
			}
		case <-deadline:
			t.Fatal("timed out waiting for notification")
		}
	}
}

// drain discards notifications for the given window, letting filesystem
// noise from test setup settle.
func drain(src *Source, window time.Duration) {
	deadline := time.After(window)
	for {
		select {
		case _, ok := <-src.Events():
			if !ok {
				return
			}
		case <-deadline:
			return
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
