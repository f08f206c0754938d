package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/lathe/internal/engine/scheduler"
	"go.trai.ch/lathe/internal/engine/trigger"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const defaultProbeInterval = 2 * time.Second

// ServeOptions configuration for the Serve method.
type ServeOptions struct {
	NoCache     bool
	OutputMode  string
	ConfigPath  string
	MetricsAddr string
}

// Serve runs the serve targets concurrently, then re-runs the tasks triggered by
// file changes until ctx is done. The preview process and the metrics endpoint
// run alongside. Shutdown waits up to the pipeline's grace period for in-flight
// tasks and the preview; a shutdown that needed force returns ErrForcedShutdown.
//
//nolint:cyclop,funlen // orchestration function
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	p, err := a.load(opts.ConfigPath)
	if err != nil {
		return err
	}
	initial, err := p.Graph.Closure(p.Targets(domain.ModeServe))
	if err != nil {
		return err
	}

	grace := p.ShutdownGrace
	if grace <= 0 {
		grace = domain.DefaultShutdownGrace
	}

	s := a.newSession(opts.OutputMode)
	if err := s.renderer.Start(ctx); err != nil {
		return err
	}
	defer s.close(ctx)

	queue := newBatchQueue()
	tr := trigger.New(a.watchers, a.logger, a.metrics, trigger.Options{
		Root:     p.Root,
		Graph:    p.Graph,
		Debounce: p.Debounce,
	})
	if err := tr.Start(ctx, p.Rules, queue.push); err != nil {
		return err
	}

	var (
		gen  ports.SiteGenerator
		proc ports.Process
	)
	if len(p.Generator.Serve) > 0 {
		gen = a.generators(p.Generator, p.Root)
		proc, err = gen.Serve(ctx, p.Environ(), a.stdout, a.stderr)
		if err != nil {
			_ = tr.Stop()
			return previewFailed(err)
		}
		a.logger.Info(fmt.Sprintf("preview started: %v", p.Generator.Serve))
	}

	g, gctx := errgroup.WithContext(ctx)

	abort := make(chan struct{})
	workDone := make(chan struct{})
	go func() {
		defer close(workDone)
		a.runBatches(gctx, s.scheduler, p, domain.Strings(initial), queue, scheduler.Options{
			NoCache: opts.NoCache,
			Abort:   abort,
		})
	}()

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-tr.Err():
			return err
		}
	})

	rendererDone := make(chan error, 1)
	go func() { rendererDone <- s.renderer.Wait() }()
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-rendererDone:
			return err
		}
	})

	if proc != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case <-proc.Done():
				return previewExited(proc.Err())
			}
		})
		if p.Generator.URL != "" {
			g.Go(func() error {
				a.probe(gctx, gen, p.Generator.URL)
				return nil
			})
		}
	}

	if opts.MetricsAddr != "" {
		g.Go(func() error {
			a.logger.Info(fmt.Sprintf("serving metrics on %s", opts.MetricsAddr))
			return a.metrics.Serve(gctx, opts.MetricsAddr)
		})
	}

	runErr := g.Wait()
	a.logger.Info("shutting down...")
	return errors.Join(runErr, a.shutdown(tr, proc, workDone, abort, grace))
}

// runBatches runs the initial task set, then one batch at a time until ctx is done.
func (a *App) runBatches(
	ctx context.Context,
	sched *scheduler.Scheduler,
	p *domain.Pipeline,
	initial []string,
	queue *batchQueue,
	opts scheduler.Options,
) {
	a.runConcurrent(ctx, sched, p, domain.ModeServe, initial, opts)
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.ready():
			a.runConcurrent(ctx, sched, p, domain.ModeWatch, queue.take(), opts)
		}
	}
}

func (a *App) runConcurrent(
	ctx context.Context,
	sched *scheduler.Scheduler,
	p *domain.Pipeline,
	mode domain.RunMode,
	names []string,
	opts scheduler.Options,
) {
	if len(names) == 0 {
		return
	}
	run, err := sched.RunConcurrent(ctx, p, mode, names, opts)
	if run != nil {
		a.logger.Info(summary(run))
	}
	if err != nil && ctx.Err() == nil {
		a.logger.Error(err)
	}
}

// shutdown stops the trigger, then waits for in-flight tasks and the preview in parallel.
func (a *App) shutdown(
	tr *trigger.Trigger,
	proc ports.Process,
	workDone <-chan struct{},
	abort chan<- struct{},
	grace time.Duration,
) error {
	var errs []error
	if err := tr.Stop(); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to stop file watcher: %v", err))
	}

	var (
		wg         sync.WaitGroup
		previewErr error
	)
	if proc != nil {
		wg.Go(func() {
			previewErr = proc.Stop(grace)
		})
	}

	timer := time.NewTimer(grace)
	select {
	case <-workDone:
	case <-timer.C:
		close(abort)
		<-workDone
		errs = append(errs, domain.Annotate(domain.ErrForcedShutdown, "reason", "tasks still running after "+grace.String()))
	}
	timer.Stop()

	wg.Wait()
	if proc != nil {
		a.metrics.PreviewUp(false)
	}
	return errors.Join(append(errs, previewErr)...)
}

// probe records the liveness of the preview server until ctx is done.
func (a *App) probe(ctx context.Context, gen ports.SiteGenerator, url string) {
	ticker := time.NewTicker(a.probeInterval)
	defer ticker.Stop()

	up := false
	for {
		alive := gen.Probe(ctx) == nil
		if ctx.Err() != nil {
			return
		}
		a.metrics.PreviewUp(alive)
		if alive && !up {
			a.logger.Info(fmt.Sprintf("preview is up at %s", url))
		}
		up = alive

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func previewExited(cause error) error {
	if cause == nil {
		cause = zerr.New("preview process exited")
	}
	return previewFailed(cause)
}

func previewFailed(cause error) error {
	return domain.Annotate(domain.ErrPreviewFailed, "cause", cause.Error())
}

// batchQueue merges triggered batches until the batch loop is ready for them.
// push never blocks, so the debounce timer is never held up by a running batch.
type batchQueue struct {
	mu      sync.Mutex
	pending []string
	seen    map[string]struct{}
	signal  chan struct{}
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		seen:   make(map[string]struct{}),
		signal: make(chan struct{}, 1),
	}
}

func (q *batchQueue) push(tasks []string) {
	q.mu.Lock()
	for _, name := range tasks {
		if _, ok := q.seen[name]; ok {
			continue
		}
		q.seen[name] = struct{}{}
		q.pending = append(q.pending, name)
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *batchQueue) ready() <-chan struct{} {
	return q.signal
}

// take returns the merged batch and resets the queue. Order is restored by the scheduler.
func (q *batchQueue) take() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	clear(q.seen)
	return out
}
