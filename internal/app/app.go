// Package app implements the application layer for lathe.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/lathe/internal/adapters/detector"
	"go.trai.ch/lathe/internal/adapters/linear"
	"go.trai.ch/lathe/internal/adapters/telemetry"
	"go.trai.ch/lathe/internal/adapters/tui"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/lathe/internal/engine/scheduler"
	"go.trai.ch/lathe/internal/ui/style"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// MetricsServer records pipeline metrics and exposes them over HTTP.
type MetricsServer interface {
	ports.Metrics
	// Serve listens on addr until ctx is done.
	Serve(ctx context.Context, addr string) error
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	logger       ports.Logger
	store        ports.BuildInfoStore
	hasher       ports.Hasher
	resolver     ports.InputResolver
	metrics      MetricsServer
	watchers     ports.WatcherFactory
	generators   ports.SiteGeneratorFactory

	stdout        io.Writer
	stderr        io.Writer
	probeInterval time.Duration
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	log ports.Logger,
	store ports.BuildInfoStore,
	hasher ports.Hasher,
	resolver ports.InputResolver,
	metrics MetricsServer,
	watchers ports.WatcherFactory,
	generators ports.SiteGeneratorFactory,
) *App {
	return &App{
		configLoader:  loader,
		executor:      executor,
		logger:        log,
		store:         store,
		hasher:        hasher,
		resolver:      resolver,
		metrics:       metrics,
		watchers:      watchers,
		generators:    generators,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		probeInterval: defaultProbeInterval,
	}
}

// WithOutput redirects task output and the run report.
// This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	NoCache    bool
	OutputMode string
	ConfigPath string
}

// Build runs the closure of targets one task at a time. Without targets the
// pipeline's build targets are used.
func (a *App) Build(ctx context.Context, targets []string, opts BuildOptions) error {
	p, err := a.load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		targets = p.Targets(domain.ModeBuild)
	}

	s := a.newSession(opts.OutputMode)
	if err := s.renderer.Start(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.renderer.Wait)

	g.Go(func() error {
		defer s.close(ctx)

		run, err := s.scheduler.RunSequential(gctx, p, targets, scheduler.Options{
			NoCache: opts.NoCache,
			Abort:   gctx.Done(),
		})
		if run != nil {
			a.logger.Info(summary(run))
		}
		if err != nil {
			return errors.Join(domain.ErrBuildExecutionFailed, err)
		}
		return nil
	})

	return g.Wait()
}

// GraphOptions configuration for the Graph method.
type GraphOptions struct {
	ConfigPath string
}

// Graph prints the resolved task order with the direct dependencies of each task.
func (a *App) Graph(_ context.Context, opts GraphOptions) error {
	p, err := a.load(opts.ConfigPath)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", style.Header("Task order"), p.Root)
	for i, name := range p.Graph.Order() {
		task, _ := p.Graph.GetTask(domain.NewInternedString(name))
		fmt.Fprintf(&b, "%3d. %s (%s)", i+1, name, task.Kind)
		if deps := domain.Strings(task.Dependencies); len(deps) > 0 {
			fmt.Fprintf(&b, " %s %s", style.Arrow, strings.Join(deps, ", "))
		}
		b.WriteByte('\n')
	}

	_, err = io.WriteString(a.stdout, b.String())
	return err
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	ConfigPath string
}

// Clean removes the state directory of the pipeline. When the pipeline file
// cannot be loaded the state directory of the working directory is removed.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	root := "."
	if p, err := a.load(opts.ConfigPath); err == nil {
		root = p.Root
	} else {
		a.logger.Warn("pipeline file not loaded, cleaning the working directory")
	}

	path := filepath.Join(root, domain.DefaultStatePath())
	a.logger.Info(fmt.Sprintf("removing %s...", path))
	if err := os.RemoveAll(path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove state directory"), "path", path)
	}
	a.logger.Info(fmt.Sprintf("removed %s", path))
	return nil
}

func (a *App) load(configPath string) (*domain.Pipeline, error) {
	var (
		p   *domain.Pipeline
		err error
	)
	if configPath != "" {
		p, err = a.configLoader.LoadFile(configPath)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		p, err = a.configLoader.Load(cwd)
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return p, nil
}

// session holds the per-invocation output stack. The renderer depends on the
// --output flag, so it is built for every run rather than injected.
type session struct {
	renderer  ports.Renderer
	tracer    *telemetry.OTelTracer
	scheduler *scheduler.Scheduler
}

func (a *App) newSession(outputMode string) *session {
	var renderer ports.Renderer
	if mode := detector.ResolveMode(detector.DetectEnvironment(), outputMode); mode == detector.ModeTUI {
		model := tui.NewModel(a.stderr)
		renderer = tui.NewRenderer(&model, tea.WithOutput(a.stderr))
	} else {
		renderer = linear.NewRenderer(a.stdout, a.stderr, mode)
	}
	tracer := telemetry.NewOTelTracer(renderer)

	return &session{
		renderer: renderer,
		tracer:   tracer,
		scheduler: scheduler.NewScheduler(
			a.executor,
			a.store,
			a.hasher,
			a.resolver,
			tracer,
			a.metrics,
		),
	}
}

// close flushes the spans, then stops the renderer and waits for it to restore the terminal.
func (s *session) close(ctx context.Context) {
	_ = s.tracer.Shutdown(context.WithoutCancel(ctx))
	_ = s.renderer.Stop()
	_ = s.renderer.Wait()
}

func summary(run *domain.BuildRun) string {
	return fmt.Sprintf("%s run %s: %d executed, %d cached, %d skipped, %d failed in %s",
		run.Mode, run.Status,
		len(run.Executed), len(run.Cached), len(run.Skipped), len(run.Failed),
		run.Duration().Round(time.Millisecond))
}
