package fwatch

// FileStat is the identity-bearing subset of a stat result.
type FileStat struct {
	Inode uint64
	Size  int64
}

// FileProber provides the filesystem reads classification depends on.
// It abstracts file access to enable testing without touching the real
// filesystem.
type FileProber interface {
	// Stat returns the inode and size of the file at path.
	Stat(path string) (*FileStat, error)

	// ReadHead returns up to limit bytes from the start of the file.
	// A short read on a small file is not an error.
	ReadHead(path string, limit int) ([]byte, error)

	// Exists reports whether the path currently exists.
	Exists(path string) bool

	// Walk visits every regular file under root, pruning excluded
	// directories. A nil filter visits everything.
	Walk(root string, filter PathFilter, fn func(path string) error) error
}
