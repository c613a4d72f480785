package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"fwatch-go/internal/fwatch"
)

// MemoryArchive is an in-memory implementation of the Archive interface,
// used in tests and as the "memory" config type. Safe for concurrent use.
type MemoryArchive struct {
	snapshots map[string][]byte // hostID -> snapshot
	versions  map[string]string // hostID -> version
	mu        sync.RWMutex
}

// NewMemoryArchive creates a new in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		snapshots: make(map[string][]byte),
		versions:  make(map[string]string),
	}
}

// PutSnapshot stores the snapshot for a host, replacing any previous one.
func (m *MemoryArchive) PutSnapshot(hostID string, r io.Reader, size int64, version string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("snapshot size mismatch: got %d bytes, want %d", len(data), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[hostID] = data
	m.versions[hostID] = version
	return nil
}

// GetSnapshot retrieves the archived snapshot for a host.
func (m *MemoryArchive) GetSnapshot(hostID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[hostID]
	if !ok {
		return fmt.Errorf("no archived snapshot for host: %s", hostID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// SnapshotVersion returns the version marker of the archived snapshot.
// Returns "" if no snapshot has been archived for this host.
func (m *MemoryArchive) SnapshotVersion(hostID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[hostID], nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryArchive implements the fwatch.Archive interface
var _ fwatch.Archive = (*MemoryArchive)(nil)
