// Package dispatch routes every task to the executor registered for its kind.
package dispatch

import (
	"context"
	"io"
	"maps"
	"slices"

	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Executor = (*Dispatcher)(nil)
	_ ports.Executor = (*GenerateExecutor)(nil)
)

// Dispatcher implements ports.Executor over a static kind to executor table.
type Dispatcher struct {
	executors map[domain.TaskKind]ports.Executor
}

// New creates a Dispatcher. The table is copied.
func New(executors map[domain.TaskKind]ports.Executor) *Dispatcher {
	return &Dispatcher{executors: maps.Clone(executors)}
}

// Kinds returns the registered kinds in sorted order.
func (d *Dispatcher) Kinds() []domain.TaskKind {
	return slices.Sorted(maps.Keys(d.executors))
}

// Execute runs the task with the executor of its kind.
func (d *Dispatcher) Execute(ctx context.Context, task *domain.Task, env []string, stdout, stderr io.Writer) error {
	executor, ok := d.executors[task.Kind]
	if !ok {
		err := domain.Annotate(domain.ErrNoExecutorForKind, "kind", string(task.Kind))
		return zerr.With(err, "task", task.Name.String())
	}
	return executor.Execute(ctx, task, env, stdout, stderr)
}

// GenerateExecutor implements the generate kind by running the site generator once.
type GenerateExecutor struct {
	factory ports.SiteGeneratorFactory
}

// NewGenerateExecutor creates a GenerateExecutor.
func NewGenerateExecutor(factory ports.SiteGeneratorFactory) *GenerateExecutor {
	return &GenerateExecutor{factory: factory}
}

// Execute renders the site with the task's command from the task's working directory.
// The task environment overrides env.
func (e *GenerateExecutor) Execute(ctx context.Context, task *domain.Task, env []string, stdout, stderr io.Writer) error {
	if len(task.Command) == 0 {
		return domain.Annotate(domain.ErrGeneratorNotConfigured, "task", task.Name.String())
	}

	gen := e.factory(domain.Generator{Build: task.Command}, task.WorkingDir.String())
	return gen.Generate(ctx, withTaskEnvironment(env, task.Environment), stdout, stderr)
}

func withTaskEnvironment(env []string, taskEnv map[string]string) []string {
	out := slices.Clone(env)
	for _, k := range slices.Sorted(maps.Keys(taskEnv)) {
		out = append(out, k+"="+taskEnv[k])
	}
	return out
}
