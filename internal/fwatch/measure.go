package fwatch

import (
	"bytes"

	"fwatch-go/internal/model"
)

// headSampleSize is how much of a file the calculator reads. All metrics,
// including the line count, are computed from this head sample.
const headSampleSize = 8 * 1024

// Calculator computes point-in-time content metrics for files.
// It is a pure function of file contents at call time; nothing is cached
// or persisted here.
type Calculator struct {
	prober FileProber
	logger Logger
}

// NewCalculator creates a Calculator reading through the given prober.
func NewCalculator(prober FileProber, logger Logger) *Calculator {
	return &Calculator{prober: prober, logger: logger}
}

// Measure returns the metrics for the file at path. Stat or read failures
// are logged at warning level and yield zeroed metrics with inode 0;
// measurement never blocks classification.
func (c *Calculator) Measure(path string) model.Measurement {
	st, err := c.prober.Stat(path)
	if err != nil {
		c.logger.Warn("measurement stat failed", "path", path, "error", err)
		return model.Measurement{}
	}

	head, err := c.prober.ReadHead(path, headSampleSize)
	if err != nil {
		c.logger.Warn("measurement read failed", "path", path, "error", err)
		return model.Measurement{}
	}

	m := model.Measurement{Inode: st.Inode, FileSize: st.Size}
	if isBinary(head) {
		// Binary content has no line or block notion.
		return m
	}

	m.LineCount = countLines(head)
	m.BlockCount = countBlocks(path, head)
	return m
}

// isBinary classifies a head sample. A NUL byte is always binary; otherwise
// the sample is binary when strictly more than 30% of its bytes fall outside
// the printable set. Exactly 30% is still text.
func isBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if !printable(b) {
			nonPrintable++
		}
	}

	return nonPrintable*100 > len(sample)*30
}

// printable reports whether a byte belongs to the text set: tab, LF, CR,
// printable ASCII, and high bytes (UTF-8 continuation ranges).
func printable(b byte) bool {
	switch {
	case b == 9 || b == 10 || b == 13:
		return true
	case b >= 32 && b <= 126:
		return true
	case b >= 128:
		return true
	}
	return false
}

// countLines counts newline-separated lines. Empty content is one line.
func countLines(sample []byte) int64 {
	return int64(bytes.Count(sample, []byte{'\n'})) + 1
}
