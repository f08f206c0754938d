package tui_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/tui"
	"go.trai.ch/lathe/internal/core/domain"
)

const (
	sass    = "sass"
	postcss = "postcss"
	hugo    = "hugo"
)

func newModel(t *testing.T) *tui.Model {
	t.Helper()
	model := tui.NewModel(io.Discard)
	m := &model
	m = update(m, tui.MsgPlan{
		Tasks:        []string{sass, postcss, hugo},
		Dependencies: map[string][]string{postcss: {sass}, hugo: {postcss}},
		Targets:      []string{hugo},
	})
	return update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func update(m *tui.Model, msg tea.Msg) *tui.Model {
	next, _ := m.Update(msg)
	return next.(*tui.Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModel_Resize(t *testing.T) {
	m := newModel(t)

	expectedLogWidth := 100 - int(100*0.3) - 4
	assert.Equal(t, expectedLogWidth, m.LogWidth)
	assert.Positive(t, m.ListHeight)
	assert.Less(t, m.ListHeight, 30)
	for _, task := range m.Tasks {
		assert.Equal(t, expectedLogWidth, task.Term.Width)
		assert.Equal(t, m.LogHeight, task.Term.Height)
	}
}

func TestModel_TaskLifecycle(t *testing.T) {
	m := newModel(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: sass, StartTime: start})
	assert.Equal(t, tui.StatusRunning, m.TaskMap[sass].Status)
	assert.Equal(t, sass, m.ActiveTaskName)

	m = update(m, tui.MsgTaskLog{SpanID: "s1", Data: []byte("compiled main.scss\n")})
	assert.Positive(t, m.TaskMap[sass].Term.UsedHeight())
	assert.Contains(t, m.View(), "compiled main.scss")

	m = update(m, tui.MsgTaskComplete{SpanID: "s1", EndTime: start.Add(1500 * time.Millisecond)})
	assert.Equal(t, tui.StatusDone, m.TaskMap[sass].Status)
	assert.Equal(t, 1500*time.Millisecond, m.TaskMap[sass].Duration)

	m = update(m, tui.MsgTaskStart{SpanID: "s2", Name: postcss, StartTime: start})
	assert.Equal(t, 1, m.SelectedIdx, "selection follows the running task")

	m = update(m, tui.MsgTaskComplete{SpanID: "s2", EndTime: start, Err: errors.New("exit status 1")})
	assert.Equal(t, tui.StatusError, m.TaskMap[postcss].Status)
	assert.Contains(t, m.View(), "exit status 1")

	m = update(m, tui.MsgTaskStart{SpanID: "s3", Name: hugo, StartTime: start})
	m = update(m, tui.MsgTaskComplete{SpanID: "s3", EndTime: start, Cached: true})
	assert.True(t, m.TaskMap[hugo].Cached)
}

func TestModel_IgnoresUnknownSpans(t *testing.T) {
	m := newModel(t)

	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: "unknown"})
	m = update(m, tui.MsgTaskLog{SpanID: "s1", Data: []byte("x")})
	m = update(m, tui.MsgTaskComplete{SpanID: "s1"})

	for _, task := range m.Tasks {
		assert.Equal(t, tui.StatusPending, task.Status)
	}
}

func TestModel_ReplanKeepsRows(t *testing.T) {
	m := newModel(t)
	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: sass})
	m = update(m, tui.MsgTaskLog{SpanID: "s1", Data: []byte("old output\n")})
	m = update(m, tui.MsgTaskComplete{SpanID: "s1", Err: errors.New("boom")})

	m = update(m, tui.MsgPlan{Tasks: []string{sass, "icons"}, Targets: []string{sass}})

	require.Len(t, m.Tasks, 4)
	assert.Equal(t, "icons", m.Tasks[3].Name)
	assert.Equal(t, 2, m.Runs)
	assert.Equal(t, tui.StatusPending, m.TaskMap[sass].Status)
	require.NoError(t, m.TaskMap[sass].Err)
	assert.Zero(t, m.TaskMap[sass].Term.UsedHeight(), "a new run starts with an empty log")
	assert.Equal(t, m.LogWidth, m.TaskMap["icons"].Term.Width)
}

func TestModel_Navigation(t *testing.T) {
	m := newModel(t)
	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: sass})

	m = update(m, key("j"))
	assert.Equal(t, 1, m.SelectedIdx)
	assert.False(t, m.FollowMode)
	assert.Equal(t, postcss, m.ActiveTaskName)

	m = update(m, key("down"))
	m = update(m, key("down"))
	assert.Equal(t, 2, m.SelectedIdx, "selection stops at the last task")

	m = update(m, key("k"))
	m = update(m, key("up"))
	m = update(m, key("up"))
	assert.Equal(t, 0, m.SelectedIdx, "selection stops at the first task")

	m = update(m, key("down"))
	m = update(m, key("esc"))
	assert.True(t, m.FollowMode)
	assert.Equal(t, 0, m.SelectedIdx, "esc jumps back to the running task")
}

func TestModel_Quit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m := newModel(t)
			next, cmd := m.Update(key(k))
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
			assert.True(t, next.(*tui.Model).Interrupted)
		})
	}
}

func TestModel_ScrollLogs(t *testing.T) {
	m := newModel(t)
	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: sass})
	m = update(m, tui.MsgTaskLog{SpanID: "s1", Data: []byte(strings.Repeat("line\n", 100))})

	term := m.TaskMap[sass].Term
	bottom := term.Offset
	assert.Positive(t, bottom)

	m = update(m, key("pgup"))
	assert.Less(t, term.Offset, bottom)
	assert.False(t, m.FollowMode)
}

func TestModel_View(t *testing.T) {
	model := tui.NewModel(io.Discard)
	assert.Equal(t, "Initializing...", model.View())

	m := newModel(t)
	view := m.View()
	assert.Contains(t, view, "TASKS")
	assert.Contains(t, view, sass)
	assert.Contains(t, view, hugo)
	assert.Contains(t, view, "LOGS")

	m = update(m, tui.MsgPlan{Tasks: []string{sass}})
	assert.Contains(t, m.View(), "run 2")
}

func TestVterm(t *testing.T) {
	vt := tui.NewVterm()
	vt.Resize(20, 3)

	_, err := vt.Write([]byte("one\ntwo\nthree\nfour\nfive\n"))
	require.NoError(t, err)
	bottom := max(vt.UsedHeight()-3, 0)
	assert.Equal(t, bottom, vt.Offset, "writes stick to the bottom")
	assert.Contains(t, vt.View(), "five")

	assert.True(t, vt.Scroll("home"))
	assert.Equal(t, 0, vt.Offset)
	assert.Contains(t, vt.View(), "one")
	assert.NotContains(t, vt.View(), "five")

	_, err = vt.Write([]byte("six\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, vt.Offset, "a scrolled terminal stays put")

	assert.True(t, vt.Scroll("end"))
	assert.Equal(t, max(vt.UsedHeight()-3, 0), vt.Offset)

	assert.True(t, vt.Scroll("pgdown"))
	assert.Equal(t, max(vt.UsedHeight()-3, 0), vt.Offset, "offset is clamped")
	assert.False(t, vt.Scroll("x"))
}

func newRenderer(model *tui.Model) *tui.Renderer {
	return tui.NewRenderer(
		model,
		tea.WithInput(strings.NewReader("")),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
		tea.WithoutRenderer(),
	)
}

func TestRenderer_Lifecycle(t *testing.T) {
	model := tui.NewModel(io.Discard)
	renderer := newRenderer(&model)

	require.NoError(t, renderer.Start(context.Background()))
	renderer.OnPlanEmit([]string{sass}, nil, []string{sass})
	renderer.OnTaskStart("s1", "", sass, time.Now())
	renderer.OnTaskLog("s1", []byte("ok\n"))
	renderer.OnTaskComplete("s1", time.Now(), nil, false)

	require.NoError(t, renderer.Stop())
	require.NoError(t, renderer.Wait())
	assert.Equal(t, tui.StatusDone, model.TaskMap[sass].Status)
}

func TestRenderer_StopBeforeStart(t *testing.T) {
	model := tui.NewModel(io.Discard)
	renderer := newRenderer(&model)

	require.NoError(t, renderer.Stop())
	require.NoError(t, renderer.Wait())
}

func TestRenderer_ContextCancel(t *testing.T) {
	model := tui.NewModel(io.Discard)
	renderer := newRenderer(&model)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, renderer.Start(ctx))
	cancel()

	require.NoError(t, renderer.Wait(), "a canceled run is not an error")
}

func TestRenderer_UserQuit(t *testing.T) {
	model := tui.NewModel(io.Discard)
	renderer := tui.NewRenderer(
		&model,
		tea.WithInput(strings.NewReader("q")),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
		tea.WithoutRenderer(),
	)

	require.NoError(t, renderer.Start(context.Background()))
	require.ErrorIs(t, renderer.Wait(), domain.ErrInterrupted)
}
