package scheduler

import (
	"context"
	"errors"
	"runtime"

	"go.trai.ch/lathe/internal/core/domain"
)

type schedulerRunState struct {
	s           *Scheduler
	ctx         context.Context
	pipeline    *domain.Pipeline
	opts        Options
	run         *domain.BuildRun
	order       []domain.InternedString
	tasks       map[domain.InternedString]domain.Task
	inDegree    map[domain.InternedString]int
	finished    map[domain.InternedString]bool
	ready       []domain.InternedString
	active      int
	parallelism int
	resultsCh   chan result
	errs        error
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	p *domain.Pipeline,
	run *domain.BuildRun,
	order []domain.InternedString,
	opts Options,
) *schedulerRunState {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	tasks := make(map[domain.InternedString]domain.Task, len(order))
	for _, name := range order {
		tasks[name], _ = p.Graph.GetTask(name)
	}

	// In-degree counts only dependencies that are part of this run.
	inDegree := make(map[domain.InternedString]int, len(order))
	var ready []domain.InternedString
	for _, name := range order {
		degree := 0
		for _, dep := range tasks[name].Dependencies {
			if _, ok := tasks[dep]; ok {
				degree++
			}
		}
		inDegree[name] = degree
		if degree == 0 {
			ready = append(ready, name)
		}
	}

	return &schedulerRunState{
		s:           s,
		ctx:         ctx,
		pipeline:    p,
		opts:        opts,
		run:         run,
		order:       order,
		tasks:       tasks,
		inDegree:    inDegree,
		finished:    make(map[domain.InternedString]bool, len(order)),
		ready:       ready,
		parallelism: parallelism,
		resultsCh:   make(chan result, parallelism),
	}
}

// runExecutionLoop schedules ready tasks until nothing is running. Once ctx is
// canceled no new task starts, but running tasks are always waited for.
func (state *schedulerRunState) runExecutionLoop() error {
	for {
		state.schedule()
		if state.active == 0 {
			break
		}
		state.handleResult(<-state.resultsCh)
	}

	var unscheduled []domain.InternedString
	for _, name := range state.order {
		if !state.finished[name] {
			unscheduled = append(unscheduled, name)
		}
	}
	state.s.skip(state.run, unscheduled...)

	if err := state.ctx.Err(); err != nil && len(unscheduled) > 0 {
		state.errs = errors.Join(state.errs, err)
	}
	return state.errs
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		t := state.tasks[name]
		go func() {
			state.resultsCh <- state.s.executeTask(state.ctx, state.pipeline, &t, state.opts)
		}()
	}
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	state.finished[res.task] = true
	state.s.record(state.run, res)

	if res.err != nil {
		state.errs = errors.Join(state.errs, &domain.TaskError{Task: res.task.String(), Err: res.err})
		state.skipDependents(res.task)
		return
	}

	for _, dep := range state.pipeline.Graph.Dependents(res.task) {
		if _, ok := state.tasks[dep]; !ok || state.finished[dep] {
			continue
		}
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

// skipDependents marks every task of this run that transitively depends on name as skipped.
func (state *schedulerRunState) skipDependents(name domain.InternedString) {
	for _, dep := range state.pipeline.Graph.Dependents(name) {
		if _, ok := state.tasks[dep]; !ok || state.finished[dep] {
			continue
		}
		state.finished[dep] = true
		state.s.skip(state.run, dep)
		state.skipDependents(dep)
	}
}
