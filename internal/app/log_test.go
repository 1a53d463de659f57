package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPixHandler_Handle(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "photo uploaded",
			want:    "2025-06-15T14:30:45Z\tINFO\top-123\tphoto uploaded\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "duplicate within batch",
			want:    "2025-06-15T14:30:45Z\tDEBUG\top-456\tduplicate within batch\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "uploaded",
			attrs:   []slog.Attr{slog.String("file", "IMG1.jpg"), slog.Int("size", 42)},
			want:    "2025-06-15T14:30:45Z\tINFO\top-789\tuploaded\tfile=IMG1.jpg\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &pixHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPixHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := &pixHandler{w: &buf, opID: "op-1"}
	h := base.WithAttrs([]slog.Attr{slog.String("account", "alice")})

	r := slog.NewRecord(time.Date(2025, 6, 15, 14, 30, 45, 0, time.UTC), slog.LevelInfo, "scan complete", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\taccount=alice") {
		t.Errorf("output %q missing pre-set attr", buf.String())
	}

	// The original handler must be unaffected.
	buf.Reset()
	if err := base.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if strings.Contains(buf.String(), "account=alice") {
		t.Errorf("base handler output %q should not carry the attr", buf.String())
	}
}
