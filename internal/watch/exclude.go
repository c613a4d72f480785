package watch

import (
	"errors"
	"path/filepath"

	"github.com/gobwas/glob"

	"fwatch-go/internal/fwatch"
)

// ErrInvalidPattern indicates an exclude pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// Exclusions is a compiled set of glob patterns deciding which paths the
// monitor ignores. A pattern is matched against the full path, the base
// name, and every path suffix, so "**/.git/**", ".git", and "build/out"
// all behave the way users expect.
type Exclusions struct {
	patterns []glob.Glob
}

// CompileExclusions compiles the pattern list with '/' as the separator:
// '*' stays inside one path segment, '**' crosses segments.
func CompileExclusions(patterns []string) (*Exclusions, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		globs = append(globs, g)
	}
	return &Exclusions{patterns: globs}, nil
}

// Excluded reports whether the path matches any exclusion pattern.
func (e *Exclusions) Excluded(path string) bool {
	for _, pattern := range e.patterns {
		if matchesPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(path string, pattern glob.Glob) bool {
	if pattern.Match(path) || pattern.Match(filepath.Base(path)) {
		return true
	}
	return matchesPathSuffix(path, pattern)
}

// matchesPathSuffix checks every trailing run of path segments, so a
// pattern like "build/out" matches "/home/x/build/out".
func matchesPathSuffix(path string, pattern glob.Glob) bool {
	parts := splitPath(path)
	for i := range parts {
		if pattern.Match(filepath.Join(parts[i:]...)) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	for path != "" && path != "/" && path != "." {
		dir, file := filepath.Split(path)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		path = filepath.Clean(dir)
	}
	return parts
}

// Compile-time check that Exclusions implements the fwatch.PathFilter interface
var _ fwatch.PathFilter = (*Exclusions)(nil)
