package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fwatch-go/internal/archive"
	"fwatch-go/internal/config"
	"fwatch-go/internal/database"
	"fwatch-go/internal/encryption"
	"fwatch-go/internal/fs"
	"fwatch-go/internal/fwatch"
	"fwatch-go/internal/model"
	"fwatch-go/internal/watch"
)

// App is the application layer between the CLI and the monitoring core.
// It constructs all dependencies from config, exposes one high-level
// method per command, and manages the store lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     fwatch.Store
	archive   fwatch.Archive // nil when no archive is configured
	encryptor fwatch.Encryptor
	service   *fwatch.Service
	clock     fwatch.Clock
	logger    fwatch.Logger
	logFile   *os.File

	// sessionID names this invocation in the log. It becomes the session
	// row ID when an event-writing command persists the session.
	sessionID string
	session   *MonitorSession // nil until persisted
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	var arc fwatch.Archive
	if cfg.Archive.Type != "" {
		arc, err = archive.NewArchiveFromConfig(cfg.Archive)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating archive: %w", err)
		}

		if err := checkArchiveVersion(store, arc, cfg.HostID); err != nil {
			store.Close()
			return nil, err
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	sessionID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	logger := &slogAdapter{l: slogger}
	svc := fwatch.NewService(store, fwatch.RealClock{}, logger)

	return &App{
		cfg:       cfg,
		store:     store,
		archive:   arc,
		encryptor: enc,
		service:   svc,
		clock:     fwatch.RealClock{},
		logger:    logger,
		logFile:   logFile,
		sessionID: sessionID,
	}, nil
}

// checkArchiveVersion fails when the archived snapshot was produced by a
// session this database has never seen: the local file is stale, and
// recording events into it would fork the history.
func checkArchiveVersion(store fwatch.Store, arc fwatch.Archive, hostID string) error {
	version, err := arc.SnapshotVersion(hostID)
	if err != nil {
		return fmt.Errorf("checking archived snapshot version: %w", err)
	}
	if version == "" {
		return nil // nothing archived yet
	}

	sess, err := store.GetSession(version)
	if err != nil {
		return fmt.Errorf("checking local session history: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("local database is behind the archive (archived session %s is not recorded locally): restore the archived snapshot or re-initialize", version)
	}
	return nil
}

// monitorTuning overlays the configured knobs on the engine defaults.
// Zero values keep the default.
func monitorTuning(cfg config.MonitorConfig) fwatch.Tuning {
	t := fwatch.DefaultTuning()
	if cfg.MoveThresholdMS > 0 {
		t.MoveThreshold = time.Duration(cfg.MoveThresholdMS) * time.Millisecond
	}
	if cfg.ClassifyDelayMS > 0 {
		t.ClassifyDelay = time.Duration(cfg.ClassifyDelayMS) * time.Millisecond
	}
	if cfg.RestoreTimeLimitMS > 0 {
		t.RestoreTimeLimit = time.Duration(cfg.RestoreTimeLimitMS) * time.Millisecond
	}
	if cfg.ScanBatchSize > 0 {
		t.ScanBatchSize = cfg.ScanBatchSize
	}
	if cfg.ScanBatchPauseMS > 0 {
		t.ScanBatchPause = time.Duration(cfg.ScanBatchPauseMS) * time.Millisecond
	}
	if cfg.ReconcileScanLimit > 0 {
		t.ReconcileLimit = cfg.ReconcileScanLimit
	}
	return t
}

// persistSession records the session row, marking this invocation as one
// that writes events. Close finalizes and archives only persisted sessions.
func (a *App) persistSession() error {
	if a.session != nil {
		return nil // already persisted
	}
	startedAt := a.clock.Now().UnixMilli()
	if _, err := a.store.CreateSession(a.sessionID, startedAt); err != nil {
		return fmt.Errorf("recording session start: %w", err)
	}
	a.session = NewMonitorSession(a.sessionID, startedAt)
	return nil
}

// RunMonitor records a session and runs the monitoring engine until ctx is
// cancelled. Close finalizes the session row and archives the database.
func (a *App) RunMonitor(ctx context.Context) error {
	filter, err := watch.CompileExclusions(a.cfg.Watch.Exclude)
	if err != nil {
		return fmt.Errorf("compiling exclude patterns: %w", err)
	}

	source, err := watch.NewSource(a.cfg.Watch.Roots, filter, a.logger)
	if err != nil {
		return fmt.Errorf("creating watch source: %w", err)
	}

	prober := fs.NewOSProber()
	tuning := monitorTuning(a.cfg.Monitor)
	calc := fwatch.NewCalculator(prober, a.logger)
	pending := fwatch.NewPendingRegistry()
	classifier := fwatch.NewClassifier(a.store, pending, calc, prober, a.clock, a.logger, tuning)
	engine := fwatch.NewEngine(a.store, source, classifier, filter, a.clock, a.logger, tuning, a.cfg.Watch.Roots)

	if err := a.persistSession(); err != nil {
		return err
	}

	runErr := engine.Run(ctx)
	a.session.Finish(engine.Recorded(), runErr)
	a.logger.Info("monitor stopped", "events", a.session.Recorded, "status", a.session.Status)
	if runErr != nil {
		return fmt.Errorf("running monitor: %w", runErr)
	}
	return nil
}

// Events returns recent events, newest first. types filters by type code,
// search by a substring of the file name or directory; latest keeps only
// the newest event per file.
func (a *App) Events(types []string, search string, limit, offset int, latest bool) ([]*model.EventRecord, error) {
	return a.service.RecentEvents(fwatch.EventQuery{
		TypeCodes:     types,
		Search:        search,
		Limit:         limit,
		Offset:        offset,
		LatestPerFile: latest,
	})
}

// Status returns the stored log summary and recent sessions.
func (a *App) Status() (*fwatch.StatusReport, error) {
	return a.service.GetStatus()
}

// FileHistory resolves the given path and returns the lifecycle of the
// file currently there, oldest first.
func (a *App) FileHistory(rawPath string, limit int) ([]*model.EventRecord, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.GetFileHistory(absPath, limit)
}

// Export writes the export document for the most recent limit events to w.
// With encrypt set the document is sealed with the public key; no
// passphrase is needed.
func (a *App) Export(w io.Writer, limit int, encrypt bool) error {
	if encrypt {
		return a.service.ExportEncrypted(w, limit, a.encryptor)
	}
	return a.service.Export(w, limit)
}

// Inspect decrypts an exported file with the private key, unlocked by the
// passphrase, and writes the plaintext document to w.
func (a *App) Inspect(path string, w io.Writer, passphrase string) error {
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()

	if err := dc.Decrypt(f, w); err != nil {
		return fmt.Errorf("decrypting export: %w", err)
	}
	return nil
}

// ArchiveNow marks this invocation for archival. The upload itself happens
// on Close, after the session row is finalized, so the archived snapshot
// always contains its own version.
func (a *App) ArchiveNow() error {
	if a.archive == nil {
		return fmt.Errorf("no archive configured")
	}
	if err := a.archive.ValidateSetup(); err != nil {
		return fmt.Errorf("validating archive: %w", err)
	}
	return a.persistSession()
}

// Close finalizes the session and closes all resources. For persisted
// sessions: finishes the session row, snapshots the database, and uploads
// the snapshot to the archive. For read-only invocations: just closes the
// store.
func (a *App) Close() error {
	var firstErr error

	if a.session != nil {
		if err := a.store.FinishSession(a.session.ID, a.clock.Now().UnixMilli(), a.session.Recorded, a.session.Status); err != nil {
			firstErr = fmt.Errorf("finishing session: %w", err)
		}

		// Snapshot while the store is still open; the upload happens after
		// it is closed.
		var tmpPath string
		if a.archive != nil {
			tmpFile, err := os.CreateTemp("", "fwatch-snapshot-*.db")
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("creating temp file for snapshot: %w", err)
				}
			} else {
				tmpPath = tmpFile.Name()
				tmpFile.Close()
				// VACUUM INTO refuses an existing target file.
				os.Remove(tmpPath)

				if err := a.store.SnapshotTo(tmpPath); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("snapshotting database: %w", err)
					}
					os.Remove(tmpPath)
					tmpPath = "" // skip the upload
				}
			}
		}

		if err := a.store.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing database: %w", err)
			}
		}

		if tmpPath != "" {
			if err := a.uploadSnapshot(tmpPath); err != nil && firstErr == nil {
				firstErr = err
			}
			os.Remove(tmpPath)
		}
	} else {
		// Read-only invocation: just close the store, no upload.
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadSnapshot opens the snapshot file and uploads it to the archive,
// versioned by the session that produced it.
func (a *App) uploadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := a.archive.PutSnapshot(a.cfg.HostID, f, info.Size(), a.session.ID); err != nil {
		return fmt.Errorf("uploading snapshot to archive: %w", err)
	}

	return nil
}
