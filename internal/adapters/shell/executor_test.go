package shell_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/shell"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

func shTask(dir, script string) *domain.Task {
	return &domain.Task{
		Name:       domain.NewInternedString("sh"),
		Kind:       domain.KindExec,
		Command:    []string{"sh", "-c", script},
		WorkingDir: domain.NewInternedString(dir),
	}
}

func TestExecutor_Execute_CapturesOutput(t *testing.T) {
	var out bytes.Buffer
	err := shell.NewExecutor().Execute(context.Background(), shTask(t.TempDir(), "echo line1; echo line2 >&2"), nil, &out, io.Discard)
	require.NoError(t, err)

	text := strings.ReplaceAll(out.String(), "\r", "")
	assert.Contains(t, text, "line1\n")
	assert.Contains(t, text, "line2\n")
}

func TestExecutor_Execute_Environment(t *testing.T) {
	var out bytes.Buffer
	task := shTask(t.TempDir(), "echo $BROWSERSLIST/$JEKYLL_ENV")
	task.Environment = map[string]string{"JEKYLL_ENV": "production"}

	env := []string{"BROWSERSLIST=ie 11", "PATH=" + os.Getenv("PATH")}
	require.NoError(t, shell.NewExecutor().Execute(context.Background(), task, env, &out, io.Discard))
	assert.Contains(t, out.String(), "ie 11/production")
}

func TestExecutor_Execute_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, shell.NewExecutor().Execute(context.Background(), shTask(dir, "echo ok > marker"), nil, io.Discard, io.Discard))
	assert.FileExists(t, filepath.Join(dir, "marker"))
}

func TestExecutor_Execute_Failure(t *testing.T) {
	err := shell.NewExecutor().Execute(context.Background(), shTask(t.TempDir(), "exit 3"), nil, io.Discard, io.Discard)
	require.Error(t, err)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, 3, zErr.Metadata()["exit_code"])
}

func TestExecutor_Execute_EmptyCommand(t *testing.T) {
	task := &domain.Task{Name: domain.NewInternedString("noop")}
	require.NoError(t, shell.NewExecutor().Execute(context.Background(), task, nil, io.Discard, io.Discard))
}

func TestExecutor_Execute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := shell.NewExecutor().Execute(ctx, shTask(t.TempDir(), "sleep 30"), nil, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
