// Package applog provides netsync's structured logging, a tab-delimited
// slog.Handler adapted to satisfy syncengine.Logger.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"netsync/internal/syncengine"
)

// handler formats log records as:
//
//	<timestamp>\t<level>\t<machine>\t<opID>\t<message>\t<key=value ...>
//
// machine is this peer's name as configured in config.Config, not just
// the invoking operation's id: on a shared mount, every log line a
// peer writes locally still needs to say which machine wrote it before
// anyone can correlate it against another peer's log or the catalog's
// CreatedBy columns.
type handler struct {
	w       io.Writer
	machine string
	opID    string
	attrs   []slog.Attr
}

func (h *handler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s\t%s", ts, level, h.machine, h.opID, r.Message); err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		w:       h.w,
		machine: h.machine,
		opID:    h.opID,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *handler) WithGroup(string) slog.Handler { return h }

// New creates a structured logger that writes to both
// <logDir>/netsync.log and stderr, tagging every line with machine (this
// peer's configured name) and opID (this invocation's id). It returns
// the slog.Logger, the open log file (for cleanup), and any error.
func New(logDir, machine, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "netsync.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	return slog.New(&handler{w: w, machine: machine, opID: opID}), f, nil
}

// Adapter wraps *slog.Logger to satisfy syncengine.Logger.
type Adapter struct {
	l *slog.Logger
}

var _ syncengine.Logger = (*Adapter)(nil)

func NewAdapter(l *slog.Logger) *Adapter { return &Adapter{l: l} }

func (a *Adapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
