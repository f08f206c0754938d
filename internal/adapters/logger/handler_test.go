package logger_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/logger"
)

func TestPrettyHandler_Handle_Levels(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		msg        string
		goldenName string
	}{
		{name: "info level", level: slog.LevelInfo, msg: "pipeline loaded", goldenName: "handler_info"},
		{name: "warn level", level: slog.LevelWarn, msg: "file watcher failed, restarting", goldenName: "handler_warn"},
		{name: "error level", level: slog.LevelError, msg: "task sass failed", goldenName: "handler_error"},
		{name: "debug level filtered", level: slog.LevelDebug, msg: "cache miss", goldenName: "handler_debug_filtered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			handler := logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
			slog.New(handler).Log(t.Context(), tt.level, tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	tests := []struct {
		name       string
		attrs      []slog.Attr
		msg        string
		goldenName string
	}{
		{
			name:       "single attribute",
			attrs:      []slog.Attr{slog.String("task", "sass")},
			msg:        "task started",
			goldenName: "handler_attrs_single",
		},
		{
			name:       "multiple attributes",
			attrs:      []slog.Attr{slog.String("task", "uglify"), slog.Int("bundles", 2)},
			msg:        "bundles written",
			goldenName: "handler_attrs_multi",
		},
		{
			name:       "group attribute",
			attrs:      []slog.Attr{slog.Group("watch", slog.String("rule", "styles"))},
			msg:        "rule matched",
			goldenName: "handler_attrs_group",
		},
		{
			name:       "nested group attribute",
			attrs:      []slog.Attr{slog.Group("preview", slog.Group("liveness", slog.String("url", "http://127.0.0.1:4000/")))},
			msg:        "preview up",
			goldenName: "handler_attrs_nested_group",
		},
		{
			name:       "mixed group and regular attrs",
			attrs:      []slog.Attr{slog.String("task", "sync"), slog.Group("files", slog.Int("pruned", 1))},
			msg:        "dest synced",
			goldenName: "handler_attrs_mixed",
		},
		{
			name:       "empty attribute value",
			attrs:      []slog.Attr{slog.String("stage", "")},
			msg:        "stage skipped",
			goldenName: "handler_attrs_empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			handler := logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}).WithAttrs(tt.attrs)
			slog.New(handler).Info(tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_WithGroup(t *testing.T) {
	tests := []struct {
		name       string
		groups     []string
		attrs      []any
		msg        string
		goldenName string
	}{
		{
			name:       "single group",
			groups:     []string{"run"},
			attrs:      []any{"id", "01JA8Z"},
			msg:        "run started",
			goldenName: "handler_group_single",
		},
		{
			name:       "nested groups",
			groups:     []string{"serve", "batch"},
			attrs:      []any{"tasks", 2},
			msg:        "batch queued",
			goldenName: "handler_group_nested",
		},
		{
			name:       "empty group name",
			groups:     []string{""},
			attrs:      []any{"task", "sass"},
			msg:        "task cached",
			goldenName: "handler_group_empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			var handler slog.Handler = logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
			for _, g := range tt.groups {
				handler = handler.WithGroup(g)
			}
			slog.New(handler).Info(tt.msg, tt.attrs...)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_RecordAttrs(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		attrs      []any
		goldenName string
	}{
		{name: "int and bool", msg: "synced", attrs: []any{"copied", 3, "prune", true}, goldenName: "handler_record_kinds"},
		{name: "multiline message", msg: "postcss failed\nexit status 1", goldenName: "handler_record_multiline"},
		{name: "empty message", attrs: []any{"task", "sass"}, goldenName: "handler_record_empty_msg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			handler := logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
			slog.New(handler).Info(tt.msg, tt.attrs...)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_Combination(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	var handler slog.Handler = logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler = handler.WithGroup("run").WithAttrs([]slog.Attr{slog.String("id", "01JA8Z")})
	slog.New(handler).Warn("task slow", "task", "hugo")

	g := goldie.New(t)
	g.Assert(t, "handler_combined_group", buf.Bytes())
}

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name         string
		handlerLevel slog.Level
		recordLevel  slog.Level
		want         bool
	}{
		{name: "debug below info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelDebug, want: false},
		{name: "info at info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelInfo, want: true},
		{name: "error above info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelError, want: true},
		{name: "warn below error", handlerLevel: slog.LevelError, recordLevel: slog.LevelWarn, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := logger.NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: tt.handlerLevel})
			assert.Equal(t, tt.want, handler.Enabled(t.Context(), tt.recordLevel))
		})
	}
}

func TestPrettyHandler_BrokenWriter(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	handler := logger.NewPrettyHandler(brokenWriter{}, nil)
	require.Error(t, handler.Handle(t.Context(), slog.NewRecord(time.Time{}, slog.LevelInfo, "lost", 0)))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}
