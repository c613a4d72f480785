package fwatch

import "io"

// Archive provides versioned off-host storage for database snapshots.
// All operations stream through io.Reader/io.Writer so snapshots never
// have to fit in memory.
type Archive interface {
	// PutSnapshot stores a database snapshot for a host. size is the number
	// of bytes that will be read from r. version identifies the monitoring
	// session that produced the snapshot; later sessions overwrite earlier
	// ones.
	PutSnapshot(hostID string, r io.Reader, size int64, version string) error

	// GetSnapshot retrieves the stored snapshot for a host and writes it to w.
	GetSnapshot(hostID string, w io.Writer) error

	// SnapshotVersion returns the version of the stored snapshot for a host.
	// Returns "" if no snapshot has been stored.
	SnapshotVersion(hostID string) (string, error)

	// ValidateSetup verifies that the archive is accessible and properly
	// configured.
	ValidateSetup() error
}
