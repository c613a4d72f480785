package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fwatch-go/internal/fwatch"
)

// MockFile is one file in the mock filesystem.
type MockFile struct {
	Inode   uint64
	Content []byte
}

// MockProber is an in-memory filesystem for testing. Tests mutate it while
// an engine reads it, so all access is locked.
type MockProber struct {
	mu    sync.Mutex
	files map[string]MockFile
}

// NewMockProber creates an empty mock filesystem.
func NewMockProber() *MockProber {
	return &MockProber{
		files: make(map[string]MockFile),
	}
}

// AddFile adds or replaces a file. Size and line count derive from content.
func (m *MockProber) AddFile(path string, inode uint64, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = MockFile{Inode: inode, Content: []byte(content)}
}

// RemoveFile removes a file. Removing a missing path is a no-op.
func (m *MockProber) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

func (m *MockProber) Stat(path string) (*fwatch.FileStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("stat %s: no such file", path)
	}
	return &fwatch.FileStat{Inode: f.Inode, Size: int64(len(f.Content))}, nil
}

func (m *MockProber) ReadHead(path string, limit int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	if len(f.Content) > limit {
		return append([]byte(nil), f.Content[:limit]...), nil
	}
	return append([]byte(nil), f.Content...), nil
}

func (m *MockProber) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.files[path]
	return ok
}

// Walk visits files under root in sorted order. The path list is snapshotted
// up front, so files added mid-walk are not visited.
func (m *MockProber) Walk(root string, filter fwatch.PathFilter, fn func(path string) error) error {
	m.mu.Lock()
	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			paths = append(paths, path)
		}
	}
	m.mu.Unlock()
	sort.Strings(paths)

	for _, path := range paths {
		if filter != nil && filter.Excluded(path) {
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}

// Compile-time check
var _ fwatch.FileProber = (*MockProber)(nil)
