package applog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		machine string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			machine: "peer-a",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "snapshot pushed",
			want:    "2024-06-15T14:30:45Z\tINFO\tpeer-a\top-123\tsnapshot pushed\n",
		},
		{
			name:    "debug level",
			machine: "peer-b",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "checking cache",
			want:    "2024-06-15T14:30:45Z\tDEBUG\tpeer-b\top-456\tchecking cache\n",
		},
		{
			name:    "with record attrs",
			machine: "peer-c",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "uploaded",
			attrs:   []slog.Attr{slog.String("path", "src/main.go"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\tpeer-c\top-789\tuploaded\tpath=src/main.go\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &handler{w: &buf, machine: tt.machine, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &handler{w: &buf, machine: "peer-a", opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "transfer")}).(*handler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "peer-a") {
		t.Errorf("expected machine peer-a to carry over through WithAttrs, got: %q", got)
	}
	if !strings.Contains(got, "component=transfer") {
		t.Errorf("expected pre-set attr component=transfer, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &handler{w: &buf, machine: "peer-a", opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*handler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
	if h2.machine != "peer-a" {
		t.Errorf("machine not carried over by WithAttrs: got %q, want peer-a", h2.machine)
	}
}

func TestHandler_Enabled(t *testing.T) {
	h := &handler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := New(dir, "peer-a", "test-op")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("New() returned nil logger")
	}
	if f == nil {
		t.Fatal("New() returned nil file")
	}
}
