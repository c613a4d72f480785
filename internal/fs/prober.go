package fs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"fwatch-go/internal/fwatch"
)

// OSProber is the real filesystem implementation of FileProber. It performs
// actual filesystem operations using the os package.
type OSProber struct{}

// NewOSProber creates a prober that operates on the real filesystem.
func NewOSProber() *OSProber {
	return &OSProber{}
}

// Stat returns the inode and size of the file at path.
func (p *OSProber) Stat(path string) (*fwatch.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	inode, err := inodeOf(info)
	if err != nil {
		return nil, err
	}
	return &fwatch.FileStat{Inode: inode, Size: info.Size()}, nil
}

// ReadHead returns up to limit bytes from the start of the file.
func (p *OSProber) ReadHead(path string, limit int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

// Exists reports whether path currently exists.
func (p *OSProber) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Walk visits every regular file under root, pruning excluded directories
// and skipping excluded files. Unreadable entries are skipped, not fatal;
// an error from fn aborts the walk.
func (p *OSProber) Walk(root string, filter fwatch.PathFilter, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if filter != nil && filter.Excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter != nil && filter.Excluded(path) {
			return nil
		}
		return fn(path)
	})
}

// Compile-time check that OSProber implements the fwatch.FileProber interface
var _ fwatch.FileProber = (*OSProber)(nil)
