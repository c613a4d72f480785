package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// logTimeLayout is the timestamp format for fwatch.log lines.
const logTimeLayout = "2006-01-02T15:04:05Z"

// sessionHandler is a slog.Handler that emits one tab-separated line per
// record:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t<key=value ...>
//
// Each record goes out in a single Write call; lines from concurrent
// goroutines do not interleave mid-line.
type sessionHandler struct {
	w         io.Writer
	sessionID string
	attrs     []slog.Attr
}

func (h *sessionHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *sessionHandler) Handle(_ context.Context, r slog.Record) error {
	var line bytes.Buffer
	line.WriteString(r.Time.UTC().Format(logTimeLayout))
	line.WriteByte('\t')
	line.WriteString(r.Level.String())
	line.WriteByte('\t')
	line.WriteString(h.sessionID)
	line.WriteByte('\t')
	line.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&line, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&line, a)
		return true
	})
	line.WriteByte('\n')

	_, err := h.w.Write(line.Bytes())
	return err
}

func writeAttr(line *bytes.Buffer, a slog.Attr) {
	fmt.Fprintf(line, "\t%s=%v", a.Key, a.Value)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &sessionHandler{w: h.w, sessionID: h.sessionID, attrs: merged}
}

func (h *sessionHandler) WithGroup(string) slog.Handler { return h }

// newLogger opens logDir/fwatch.log for appending and returns a logger that
// writes to it and to stderr. The caller closes the returned file when the
// session ends.
func newLogger(logDir, sessionID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, "fwatch.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	h := &sessionHandler{w: io.MultiWriter(f, os.Stderr), sessionID: sessionID}
	return slog.New(h), f, nil
}

// slogAdapter exposes a *slog.Logger through the fwatch.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
