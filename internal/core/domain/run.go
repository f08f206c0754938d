package domain

import (
	"fmt"
	"slices"
	"time"
)

// RunMode identifies what started a BuildRun.
type RunMode string

const (
	// ModeBuild is a one-shot sequential build.
	ModeBuild RunMode = "build"
	// ModeServe is the initial concurrent run of serve mode.
	ModeServe RunMode = "serve"
	// ModeWatch is a concurrent run triggered by a watch batch.
	ModeWatch RunMode = "watch"
)

// RunStatus is the terminal status of a BuildRun.
type RunStatus string

const (
	// StatusSuccess means every planned task completed or was cached.
	StatusSuccess RunStatus = "success"
	// StatusPartialFailure means some tasks failed while others completed.
	StatusPartialFailure RunStatus = "partial-failure"
	// StatusFailure means the run aborted, or nothing completed.
	StatusFailure RunStatus = "failure"
)

// BuildRun is one execution of the full task set or of a triggered subset.
type BuildRun struct {
	ID         string
	Mode       RunMode
	StartedAt  time.Time
	FinishedAt time.Time
	Planned    []string
	Executed   []string
	Cached     []string
	Skipped    []string
	Failed     []string
	Status     RunStatus
}

// NewBuildRun creates a run for the planned tasks.
func NewBuildRun(id string, mode RunMode, planned []string, startedAt time.Time) *BuildRun {
	return &BuildRun{
		ID:        id,
		Mode:      mode,
		StartedAt: startedAt,
		Planned:   planned,
	}
}

// Finish stamps the run and derives its status.
// A build-mode run fails on the first failure; concurrent runs report a partial
// failure as long as at least one task completed.
func (r *BuildRun) Finish(at time.Time) RunStatus {
	r.FinishedAt = at
	switch {
	case len(r.Failed) == 0 && len(r.Skipped) == 0:
		r.Status = StatusSuccess
	case r.Mode == ModeBuild:
		r.Status = StatusFailure
	case r.Succeeded() > 0:
		r.Status = StatusPartialFailure
	default:
		r.Status = StatusFailure
	}
	return r.Status
}

// Succeeded returns the number of tasks that ran successfully or were cached.
func (r *BuildRun) Succeeded() int {
	ok := len(r.Cached)
	for _, name := range r.Executed {
		if !slices.Contains(r.Failed, name) {
			ok++
		}
	}
	return ok
}

// Duration returns how long the run took.
func (r *BuildRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// TaskError reports the failure of a single task.
// It matches ErrTaskExecutionFailed and the underlying cause with errors.Is.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: task %q: %v", ErrTaskExecutionFailed.Error(), e.Task, e.Err)
}

// Message is the headline printed before the cause chain.
func (e *TaskError) Message() string {
	return fmt.Sprintf("task %q failed", e.Task)
}

func (e *TaskError) Unwrap() []error {
	return []error{ErrTaskExecutionFailed, e.Err}
}
