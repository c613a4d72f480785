package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fwatch-go/internal/fwatch"
)

// FileSystemArchive is a filesystem-based implementation of the Archive
// interface. It stores snapshots in a directory structure:
//
//	<root>/
//	  snapshots/
//	    <hostID>.db       (snapshot files, one per host)
//	    <hostID>.version  (version markers)
type FileSystemArchive struct {
	root        string
	snapshotDir string
}

// NewFileSystemArchive creates a new filesystem archive rooted at the given path.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	snapshotDir := filepath.Join(root, "snapshots")

	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &FileSystemArchive{
		root:        root,
		snapshotDir: snapshotDir,
	}, nil
}

// PutSnapshot stores the snapshot for a host along with its version marker.
func (a *FileSystemArchive) PutSnapshot(hostID string, r io.Reader, size int64, version string) error {
	destPath := filepath.Join(a.snapshotDir, hostID+".db")
	if err := atomicWrite(destPath, r, size); err != nil {
		return err
	}

	// Write version file
	versionPath := filepath.Join(a.snapshotDir, hostID+".version")
	return os.WriteFile(versionPath, []byte(version+"\n"), 0644)
}

// GetSnapshot retrieves the archived snapshot for a host and writes it to w.
func (a *FileSystemArchive) GetSnapshot(hostID string, w io.Writer) error {
	srcPath := filepath.Join(a.snapshotDir, hostID+".db")

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no archived snapshot for host: %s", hostID)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	return nil
}

// SnapshotVersion returns the version marker of the archived snapshot.
// Returns "" if no version file exists.
func (a *FileSystemArchive) SnapshotVersion(hostID string) (string, error) {
	versionPath := filepath.Join(a.snapshotDir, hostID+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading version file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// ValidateSetup verifies that the archive directories are accessible.
func (a *FileSystemArchive) ValidateSetup() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}

	info, err = os.Stat(a.snapshotDir)
	if err != nil {
		return fmt.Errorf("archive directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive path is not a directory: %s", a.snapshotDir)
	}

	return nil
}

// atomicWrite streams r into path through a temp file in the same
// directory, so a crash mid-write never leaves a partial snapshot at
// path. The write is discarded when the byte count disagrees with want.
func atomicWrite(path string, r io.Reader, want int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fwatch-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", copyErr)
	case closeErr != nil:
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", closeErr)
	case n != want:
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot size mismatch: got %d bytes, want %d", n, want)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemArchive implements the fwatch.Archive interface
var _ fwatch.Archive = (*FileSystemArchive)(nil)
