package fwatch

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Structural block counting is extension-driven and best-effort: it counts
// surface declaration patterns in the head sample, not parsed syntax.
// Extensions without a counter yield a nil count, which is not an error.

// curlyFunctionPatterns are the surface patterns counted as function-like
// declarations in curly-brace languages. A line counts once no matter how
// many patterns it contains.
var curlyFunctionPatterns = []string{
	"function ",
	"function(",
	"=> {",
	"=>{",
}

// countBlocks returns the structural block count for the sample, or nil
// when the extension has no counter.
func countBlocks(path string, sample []byte) *int64 {
	counter := counterForExtension(strings.ToLower(filepath.Ext(path)))
	if counter == nil {
		return nil
	}
	n := counter(sample)
	return &n
}

func counterForExtension(ext string) func([]byte) int64 {
	switch ext {
	case ".md", ".markdown":
		return countHeadings
	case ".py", ".rb":
		return countScriptDeclarations
	case ".js", ".jsx", ".ts", ".tsx":
		return countCurlyFunctions
	}
	return nil
}

// countHeadings counts Markdown heading lines.
func countHeadings(sample []byte) int64 {
	var n int64
	for _, line := range bytes.Split(sample, []byte{'\n'}) {
		if len(line) > 0 && line[0] == '#' {
			n++
		}
	}
	return n
}

// countScriptDeclarations counts class and def declarations at line start.
// Indented (nested) declarations are deliberately not counted.
func countScriptDeclarations(sample []byte) int64 {
	var n int64
	for _, line := range bytes.Split(sample, []byte{'\n'}) {
		s := string(line)
		if strings.HasPrefix(s, "class ") || strings.HasPrefix(s, "def ") {
			n++
		}
	}
	return n
}

// countCurlyFunctions counts lines containing any function-like surface
// pattern.
func countCurlyFunctions(sample []byte) int64 {
	var n int64
	for _, line := range bytes.Split(sample, []byte{'\n'}) {
		s := string(line)
		for _, p := range curlyFunctionPatterns {
			if strings.Contains(s, p) {
				n++
				break
			}
		}
	}
	return n
}
