// Package scheduler runs planned tasks: one at a time for builds, and concurrently
// along the dependency graph for serve mode and watch batches.
package scheduler

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.trai.ch/lathe/internal/adapters/ids" //nolint:depguard // run ids only
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

// Task outcomes reported to ports.Metrics.
const (
	outcomeSuccess = "success"
	outcomeCached  = "cached"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Options tune a single run.
type Options struct {
	// NoCache bypasses the input-hash cache. Hashes of executed tasks are still recorded.
	NoCache bool
	// Parallelism bounds concurrent runs. Zero means runtime.NumCPU().
	Parallelism int
	// Abort cancels in-flight tasks when closed. Without it, in-flight tasks outlive ctx.
	Abort <-chan struct{}
}

// Scheduler manages the execution of tasks in the dependency graph.
type Scheduler struct {
	executor ports.Executor
	store    ports.BuildInfoStore
	hasher   ports.Hasher
	resolver ports.InputResolver
	tracer   ports.Tracer
	metrics  ports.Metrics
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	executor ports.Executor,
	store ports.BuildInfoStore,
	hasher ports.Hasher,
	resolver ports.InputResolver,
	tracer ports.Tracer,
	metrics ports.Metrics,
) *Scheduler {
	return &Scheduler{
		executor: executor,
		store:    store,
		hasher:   hasher,
		resolver: resolver,
		tracer:   tracer,
		metrics:  metrics,
	}
}

// RunSequential runs the closure of targets in resolved order, one task at a time.
// The first failure aborts the run: the remaining tasks are skipped and a *domain.TaskError
// naming the failed task is returned. Canceling ctx stops before the next task.
func (s *Scheduler) RunSequential(
	ctx context.Context,
	p *domain.Pipeline,
	targets []string,
	opts Options,
) (*domain.BuildRun, error) {
	order, err := p.Graph.Closure(targets)
	if err != nil {
		return nil, err
	}

	run := s.begin(ctx, p, domain.ModeBuild, order, targets)

	var runErr error
	for i, name := range order {
		if err := ctx.Err(); err != nil {
			s.skip(run, order[i:]...)
			runErr = err
			break
		}

		task, _ := p.Graph.GetTask(name)
		res := s.executeTask(ctx, p, &task, opts)
		s.record(run, res)
		if res.err != nil {
			s.skip(run, order[i+1:]...)
			runErr = &domain.TaskError{Task: name.String(), Err: res.err}
			break
		}
	}

	s.finish(run)
	return run, runErr
}

// RunConcurrent runs exactly the named tasks, in parallel wherever the graph allows.
// Dependencies outside names are assumed to be up to date. A failed task never aborts
// its siblings; its dependents are skipped. The returned error joins every task failure.
func (s *Scheduler) RunConcurrent(
	ctx context.Context,
	p *domain.Pipeline,
	mode domain.RunMode,
	names []string,
	opts Options,
) (*domain.BuildRun, error) {
	order := domain.NewInternedStrings(p.Graph.Sort(names))
	run := s.begin(ctx, p, mode, order, names)

	state := s.newRunState(ctx, p, run, order, opts)
	err := state.runExecutionLoop()

	s.finish(run)
	return run, err
}

// begin emits the plan and opens the BuildRun.
func (s *Scheduler) begin(
	ctx context.Context,
	p *domain.Pipeline,
	mode domain.RunMode,
	order []domain.InternedString,
	targets []string,
) *domain.BuildRun {
	planned := domain.Strings(order)

	inPlan := make(map[domain.InternedString]bool, len(order))
	for _, name := range order {
		inPlan[name] = true
	}
	depMap := make(map[string][]string, len(order))
	for _, name := range order {
		task, _ := p.Graph.GetTask(name)
		deps := make([]string, 0, len(task.Dependencies))
		for _, dep := range task.Dependencies {
			if inPlan[dep] {
				deps = append(deps, dep.String())
			}
		}
		depMap[name.String()] = deps
	}

	s.tracer.EmitPlan(ctx, planned, depMap, targets)

	now := time.Now()
	return domain.NewBuildRun(ids.New(now), mode, planned, now)
}

func (s *Scheduler) finish(run *domain.BuildRun) {
	run.Finish(time.Now())
	s.metrics.RunFinished(run)
}

type result struct {
	task    domain.InternedString
	err     error
	cached  bool
	elapsed time.Duration
}

func (s *Scheduler) record(run *domain.BuildRun, res result) {
	name := res.task.String()
	switch {
	case res.cached:
		run.Cached = append(run.Cached, name)
		s.metrics.TaskFinished(name, outcomeCached, res.elapsed)
	case res.err != nil:
		run.Executed = append(run.Executed, name)
		run.Failed = append(run.Failed, name)
		s.metrics.TaskFinished(name, outcomeFailed, res.elapsed)
	default:
		run.Executed = append(run.Executed, name)
		s.metrics.TaskFinished(name, outcomeSuccess, res.elapsed)
	}
}

func (s *Scheduler) skip(run *domain.BuildRun, names ...domain.InternedString) {
	for _, name := range names {
		run.Skipped = append(run.Skipped, name.String())
		s.metrics.TaskFinished(name.String(), outcomeSkipped, 0)
	}
}

// executeTask runs one task inside its span. The task's context is detached from ctx,
// so canceling the run lets the task finish; only opts.Abort interrupts it.
func (s *Scheduler) executeTask(ctx context.Context, p *domain.Pipeline, t *domain.Task, opts Options) result {
	start := time.Now()

	taskCtx, cancel := detach(ctx, opts.Abort)
	defer cancel()

	// The span must end before the result is handed back, so the renderer sees the
	// completion before the run finishes.
	res := func() result {
		taskCtx, span := s.tracer.Start(taskCtx, t.Name.String())
		defer span.End()

		cached, hash, err := s.checkTaskCache(t, p, opts.NoCache, span)
		if err != nil {
			span.RecordError(err)
			return result{err: err}
		}
		if cached {
			span.SetAttribute(ports.SpanAttrCached, true)
			return result{cached: true}
		}

		if err := s.executor.Execute(taskCtx, t, p.Environ(), span, span); err != nil {
			span.RecordError(err)
			return result{err: err}
		}

		if hash != "" {
			if err := s.storeBuildInfo(t, p, hash); err != nil {
				_, _ = fmt.Fprintf(span, "build cache not updated: %v\n", err)
			}
		}
		return result{}
	}()

	res.task = t.Name
	res.elapsed = time.Since(start)
	return res
}

// detach returns a context that ignores the cancellation of ctx and is canceled
// when abort is closed.
func detach(ctx context.Context, abort <-chan struct{}) (context.Context, context.CancelFunc) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if abort == nil {
		return taskCtx, cancel
	}
	go func() {
		select {
		case <-abort:
			cancel()
		case <-taskCtx.Done():
		}
	}()
	return taskCtx, cancel
}

// checkTaskCache reports whether the task can be skipped and returns its input hash.
// Tasks without input patterns have no hash and always run. A store read failure
// counts as a miss, since the store is only an optimisation.
func (s *Scheduler) checkTaskCache(
	t *domain.Task,
	p *domain.Pipeline,
	noCache bool,
	span ports.Span,
) (cached bool, hash string, err error) {
	hash, err = s.inputHash(t, p)
	if err != nil || hash == "" || noCache {
		return false, hash, err
	}

	info, err := s.store.Get(p.Root, t.Name.String())
	if err != nil {
		_, _ = fmt.Fprintf(span, "build cache unreadable: %v\n", err)
		return false, hash, nil
	}
	if info == nil || info.InputHash != hash {
		return false, hash, nil
	}

	return s.verifyOutputsMatch(t, info, p.Root), hash, nil
}

func (s *Scheduler) inputHash(t *domain.Task, p *domain.Pipeline) (string, error) {
	patterns := t.InputPatterns()
	if len(patterns) == 0 {
		return "", nil
	}

	inputs, err := s.resolver.ResolveInputs(patterns, p.Root)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputResolutionFailed.Error())
	}

	hash, err := s.hasher.ComputeInputHash(t, mergeEnvironment(p.Environment, t.Environment), inputs)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputHashComputationFailed.Error())
	}
	return hash, nil
}

// verifyOutputsMatch checks that the outputs on disk are the ones the cached run produced.
func (s *Scheduler) verifyOutputsMatch(t *domain.Task, info *domain.BuildInfo, root string) bool {
	outputs := t.OutputPatterns()
	if len(outputs) == 0 {
		return true
	}

	outputHash, err := s.hasher.ComputeOutputHash(outputs, root)
	if err != nil {
		return false
	}
	return info.OutputHash == outputHash
}

// storeBuildInfo records a successful execution. An in-place transform rewrites its own
// inputs, so its input hash is taken again after the run.
func (s *Scheduler) storeBuildInfo(t *domain.Task, p *domain.Pipeline, hash string) error {
	if rewritesInputs(t) {
		var err error
		if hash, err = s.inputHash(t, p); err != nil {
			return err
		}
	}

	var outputHash string
	if outputs := t.OutputPatterns(); len(outputs) > 0 {
		var err error
		if outputHash, err = s.hasher.ComputeOutputHash(outputs, p.Root); err != nil {
			return err
		}
	}

	return s.store.Put(p.Root, domain.BuildInfo{
		TaskName:   t.Name.String(),
		InputHash:  hash,
		OutputHash: outputHash,
		Timestamp:  time.Now(),
	})
}

func rewritesInputs(t *domain.Task) bool {
	outputs := t.OutputPatterns()
	for _, in := range t.InputPatterns() {
		for _, out := range outputs {
			if domain.PatternsOverlap(in, out) {
				return true
			}
		}
	}
	return false
}

// mergeEnvironment returns the pipeline environment overridden by the task environment.
func mergeEnvironment(pipelineEnv, taskEnv map[string]string) map[string]string {
	env := make(map[string]string, len(pipelineEnv)+len(taskEnv))
	maps.Copy(env, pipelineEnv)
	maps.Copy(env, taskEnv)
	return env
}
