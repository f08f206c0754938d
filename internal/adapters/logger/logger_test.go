package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/logger"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger writing uncolored output to a buffer.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New()
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Levels(t *testing.T) {
	lg, buf := newTestLogger(t)

	lg.Info("watching 3 rules")
	lg.Warn("preview exited")

	assert.Equal(t, "watching 3 rules\n! preview exited\n", buf.String())
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "standard error",
			err:  errors.New("boom"),
			want: "✗ Error: boom\n",
		},
		{
			name: "wrapped chain with metadata",
			err:  zerr.With(zerr.Wrap(errors.New("exit status 3"), "command failed"), "exit_code", 3),
			want: "✗ Error: command failed (exit_code=3)\n\n  Caused by:\n    → exit status 3\n",
		},
		{
			name: "annotated sentinel",
			err:  domain.Annotate(domain.ErrInputNotFound, "path", "scss/main.scss"),
			want: "✗ Error: input not found (path=scss/main.scss)\n",
		},
		{
			name: "task error follows the cause",
			err:  &domain.TaskError{Task: "sass", Err: zerr.Wrap(errors.New("exit status 1"), "command failed")},
			want: "✗ Error: task \"sass\" failed\n\n  Caused by:\n    → command failed\n    → exit status 1\n",
		},
		{
			name: "config error",
			err:  domain.ConfigError(domain.Annotate(domain.ErrMissingDependency, "dependency", "sass")),
			want: "✗ Error: invalid pipeline configuration\n\n  Caused by:\n    → missing dependency (dependency=sass)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Error(zerr.Wrap(errors.New("exit status 1"), "command failed"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "operation failed", record["msg"])
	assert.Equal(t, "command failed: exit status 1", record["error"])

	buf.Reset()
	lg.SetJSON(false)
	lg.Info("back to pretty")
	assert.Equal(t, "back to pretty\n", buf.String())
}

func TestCollectErrorEntries(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessages []string
		wantMetadata []map[string]any
	}{
		{
			name:         "single standard error",
			err:          errors.New("simple error"),
			wantMessages: []string{"simple error"},
			wantMetadata: []map[string]any{nil},
		},
		{
			name:         "zerr wrapped chain",
			err:          zerr.Wrap(zerr.Wrap(errors.New("root cause"), "middle layer"), "outer layer"),
			wantMessages: []string{"outer layer", "middle layer", "root cause"},
			wantMetadata: []map[string]any{{}, {}, nil},
		},
		{
			name: "metadata on each level",
			err: func() error {
				inner := zerr.With(zerr.New("inner"), "inner_key", "inner_val")
				return zerr.With(zerr.Wrap(inner, "outer"), "outer_key", "outer_val")
			}(),
			wantMessages: []string{"outer", "inner"},
			wantMetadata: []map[string]any{{"outer_key": "outer_val"}, {"inner_key": "inner_val"}},
		},
		{
			name:         "nil",
			err:          nil,
			wantMessages: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntries(tt.err)
			require.Len(t, entries, len(tt.wantMessages))
			for i, want := range tt.wantMessages {
				assert.Equal(t, want, entries[i].Message, "message at %d", i)
				assert.Equal(t, tt.wantMetadata[i], entries[i].Metadata, "metadata at %d", i)
			}
		})
	}
}

func TestFormatErrorEntries_Multiline(t *testing.T) {
	got := logger.FormatErrorEntries([]logger.ErrorEntry{
		{Message: "first\nsecond"},
		{Message: "cause\ndetail"},
	})
	assert.Equal(t, "Error: first\n       second\n\n  Caused by:\n    → cause\n      detail", got)
}
