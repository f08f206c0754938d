package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer wraps the Bubble Tea model as a ports.Renderer. The program is
// created by Start; events sent before Start are dropped.
type Renderer struct {
	model   *Model
	opts    []tea.ProgramOption
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		model: model,
		opts:  opts,
		done:  make(chan struct{}),
	}
}

// Start launches the TUI in a background goroutine. The program is killed when ctx is done.
// It must be called before events are sent from other goroutines.
func (r *Renderer) Start(ctx context.Context) error {
	if r.program != nil {
		return nil
	}
	r.program = tea.NewProgram(r.model, append(r.opts, tea.WithContext(ctx))...)
	go func() {
		_, r.err = r.program.Run()
		close(r.done)
	}()
	return nil
}

// Stop signals the TUI to quit. It is a no-op before Start.
func (r *Renderer) Stop() error {
	if r.program != nil {
		r.program.Quit()
	}
	return nil
}

// Wait blocks until the TUI has terminated. A user quit reports ErrInterrupted;
// a kill through the start context is not an error.
func (r *Renderer) Wait() error {
	if r.program == nil {
		return nil
	}
	<-r.done

	switch {
	case errors.Is(r.err, tea.ErrProgramKilled):
		return nil
	case r.err != nil:
		return r.err
	case r.model.Interrupted:
		return domain.ErrInterrupted
	default:
		return nil
	}
}

func (r *Renderer) send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// OnPlanEmit forwards a new plan to the TUI.
func (r *Renderer) OnPlanEmit(tasks []string, deps map[string][]string, targets []string) {
	r.send(MsgPlan{
		Tasks:        tasks,
		Dependencies: deps,
		Targets:      targets,
	})
}

// OnTaskStart forwards task start events to the TUI.
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.send(MsgTaskStart{
		SpanID:    spanID,
		ParentID:  parentID,
		Name:      name,
		StartTime: startTime,
	})
}

// OnTaskLog forwards task output to the TUI.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.send(MsgTaskLog{
		SpanID: spanID,
		Data:   data,
	})
}

// OnTaskComplete forwards task completion events to the TUI.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.send(MsgTaskComplete{
		SpanID:  spanID,
		EndTime: endTime,
		Err:     err,
		Cached:  cached,
	})
}
