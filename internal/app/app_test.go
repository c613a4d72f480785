package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fwatch-go/internal/archive"
	"fwatch-go/internal/config"
	"fwatch-go/internal/database"
	"fwatch-go/internal/fwatch"
)

// testConfig builds a config backed by temp directories, an in-memory
// database, and the in-memory archive.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		HostID:   "host-test",
		BaseDir:  base,
		LogDir:   filepath.Join(base, "log"),
		Database: config.DatabaseConfig{Type: "memory"},
		Archive:  config.ArchiveConfig{Type: "memory"},
		Encryption: config.EncryptionConfig{
			Type:           "test",
			PublicKeyPath:  filepath.Join(base, "keys", "fwatch.pub"),
			PrivateKeyPath: filepath.Join(base, "keys", "fwatch.key"),
		},
	}
}

func TestMonitorTuning(t *testing.T) {
	t.Run("zero config keeps engine defaults", func(t *testing.T) {
		got := monitorTuning(config.MonitorConfig{})
		want := fwatch.DefaultTuning()
		if got != want {
			t.Errorf("monitorTuning(zero) = %+v, want %+v", got, want)
		}
	})

	t.Run("configured knobs override defaults", func(t *testing.T) {
		got := monitorTuning(config.MonitorConfig{
			MoveThresholdMS:    250,
			ClassifyDelayMS:    75,
			RestoreTimeLimitMS: 60000,
			ScanBatchSize:      25,
			ScanBatchPauseMS:   10,
			ReconcileScanLimit: 500,
		})

		if got.MoveThreshold != 250*time.Millisecond {
			t.Errorf("MoveThreshold = %v, want 250ms", got.MoveThreshold)
		}
		if got.ClassifyDelay != 75*time.Millisecond {
			t.Errorf("ClassifyDelay = %v, want 75ms", got.ClassifyDelay)
		}
		if got.RestoreTimeLimit != time.Minute {
			t.Errorf("RestoreTimeLimit = %v, want 1m", got.RestoreTimeLimit)
		}
		if got.ScanBatchSize != 25 {
			t.Errorf("ScanBatchSize = %d, want 25", got.ScanBatchSize)
		}
		if got.ScanBatchPause != 10*time.Millisecond {
			t.Errorf("ScanBatchPause = %v, want 10ms", got.ScanBatchPause)
		}
		if got.ReconcileLimit != 500 {
			t.Errorf("ReconcileLimit = %d, want 500", got.ReconcileLimit)
		}
	})
}

func TestCheckArchiveVersion(t *testing.T) {
	newStore := func(t *testing.T) fwatch.Store {
		t.Helper()
		store, err := database.NewStoreFromConfig(config.DatabaseConfig{Type: "memory"}, "host-test")
		if err != nil {
			t.Fatalf("creating store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}

	t.Run("passes with no archived snapshot", func(t *testing.T) {
		if err := checkArchiveVersion(newStore(t), archive.NewMemoryArchive(), "host-test"); err != nil {
			t.Errorf("checkArchiveVersion() error = %v", err)
		}
	})

	t.Run("passes when the archived session is recorded locally", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.CreateSession("sess-known", 1000); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}

		arc := archive.NewMemoryArchive()
		data := []byte("snapshot")
		if err := arc.PutSnapshot("host-test", bytes.NewReader(data), int64(len(data)), "sess-known"); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		if err := checkArchiveVersion(store, arc, "host-test"); err != nil {
			t.Errorf("checkArchiveVersion() error = %v", err)
		}
	})

	t.Run("fails when the archived session is unknown", func(t *testing.T) {
		arc := archive.NewMemoryArchive()
		data := []byte("snapshot")
		if err := arc.PutSnapshot("host-test", bytes.NewReader(data), int64(len(data)), "sess-elsewhere"); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		err := checkArchiveVersion(newStore(t), arc, "host-test")
		if err == nil {
			t.Fatal("checkArchiveVersion() expected error for unknown archived session")
		}
		if !strings.Contains(err.Error(), "behind the archive") {
			t.Errorf("error = %q, want mention of being behind the archive", err)
		}
	})
}

func TestApp_CloseWithoutSession(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Read-only invocations never archive.
	version, err := a.archive.SnapshotVersion(cfg.HostID)
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != "" {
		t.Errorf("snapshot version = %q, want none for a read-only invocation", version)
	}
}

func TestApp_ArchiveOnClose(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	if err := a.ArchiveNow(); err != nil {
		t.Fatalf("ArchiveNow() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	version, err := a.archive.SnapshotVersion(cfg.HostID)
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != a.sessionID {
		t.Errorf("snapshot version = %q, want session %q", version, a.sessionID)
	}

	var buf bytes.Buffer
	if err := a.archive.GetSnapshot(cfg.HostID, &buf); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("archived snapshot is empty")
	}
}

func TestApp_ArchiveNowWithoutArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive = config.ArchiveConfig{}

	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if err := a.ArchiveNow(); err == nil {
		t.Fatal("ArchiveNow() expected error with no archive configured")
	}
}

func TestNewApp_StaleDatabase(t *testing.T) {
	base := t.TempDir()
	cfg := &config.Config{
		HostID:  "host-test",
		BaseDir: base,
		LogDir:  filepath.Join(base, "log"),
		Database: config.DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(base, "data"),
		},
		Archive: config.ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(base, "archive"),
		},
		Encryption: config.EncryptionConfig{Type: "test"},
	}

	// First invocation records a session and archives on close.
	a1, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if err := a1.ArchiveNow(); err != nil {
		t.Fatalf("ArchiveNow() error = %v", err)
	}
	if err := a1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Same database: the archived session is recorded locally.
	a2, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() with current database error = %v", err)
	}
	if err := a2.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Wipe the local database; the archived session is now unknown.
	if err := os.RemoveAll(filepath.Join(base, "data")); err != nil {
		t.Fatalf("removing data dir: %v", err)
	}
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("NewApp() expected error for a database behind the archive")
	} else if !strings.Contains(err.Error(), "behind the archive") {
		t.Errorf("error = %q, want mention of being behind the archive", err)
	}
}

func TestApp_RunMonitor(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "tree")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("creating root: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	cfg := testConfig(t)
	cfg.Archive = config.ArchiveConfig{} // no upload in this test
	cfg.Watch.Roots = []string{root}

	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := a.RunMonitor(ctx); err != nil {
		t.Fatalf("RunMonitor() error = %v", err)
	}

	if a.session == nil {
		t.Fatal("RunMonitor() did not persist a session")
	}
	if a.session.Recorded == 0 {
		t.Error("initial scan recorded no events")
	}
	if a.session.Status != "finished" {
		t.Errorf("session status = %q, want finished", a.session.Status)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestApp_RunMonitor_NoRoots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive = config.ArchiveConfig{}

	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if err := a.RunMonitor(context.Background()); err == nil {
		t.Fatal("RunMonitor() expected error with no roots configured")
	}
	if a.session != nil {
		t.Error("failed start must not persist a session")
	}
}
