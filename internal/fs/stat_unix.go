//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
)

// inodeOf extracts the inode number from Unix-specific stat data.
func inodeOf(info fs.FileInfo) (uint64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("no inode available: stat data is %T, not *syscall.Stat_t", info.Sys())
	}
	return stat.Ino, nil
}
