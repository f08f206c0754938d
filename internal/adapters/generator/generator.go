// Package generator drives the external static-site generator: one-shot builds and
// the long-running preview server.
package generator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.trai.ch/lathe/internal/adapters/shell"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// killDelay is the grace period of a canceled one-shot build.
	killDelay = 5 * time.Second
	// probeTimeout bounds a single liveness probe.
	probeTimeout = 2 * time.Second
)

var (
	_ ports.SiteGenerator = (*Generator)(nil)
	_ ports.Process       = (*Process)(nil)
)

// Generator implements ports.SiteGenerator with subprocesses run from the pipeline root.
type Generator struct {
	settings domain.Generator
	root     string
	client   *http.Client
}

// New creates a Generator for the given settings.
func New(settings domain.Generator, root string) *Generator {
	return &Generator{
		settings: settings,
		root:     root,
		client:   &http.Client{Timeout: probeTimeout},
	}
}

// NewFactory returns a ports.SiteGeneratorFactory building Generators.
func NewFactory() ports.SiteGeneratorFactory {
	return func(settings domain.Generator, root string) ports.SiteGenerator {
		return New(settings, root)
	}
}

// Generate runs the build command to completion.
// Canceling ctx sends SIGTERM to the process group, then SIGKILL after a grace period.
func (g *Generator) Generate(ctx context.Context, env []string, stdout, stderr io.Writer) error {
	if len(g.settings.Build) == 0 {
		return domain.ErrGeneratorNotConfigured
	}

	cmd := g.command(ctx, g.settings.Build, env, stdout, stderr)
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = killDelay

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.Wrap(err, "site generation failed"), "exit_code", exitCode)
	}
	return nil
}

// Serve starts the preview command. The process outlives ctx; it ends through Stop.
func (g *Generator) Serve(_ context.Context, env []string, stdout, stderr io.Writer) (ports.Process, error) {
	if len(g.settings.Serve) == 0 {
		return nil, domain.ErrGeneratorNotConfigured
	}

	cmd := g.command(context.Background(), g.settings.Serve, env, stdout, stderr)
	if err := cmd.Start(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrPreviewFailed.Error()), "command", g.settings.Serve[0])
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

// Probe requests the preview URL. Any response below 500 counts as alive.
func (g *Generator) Probe(ctx context.Context) error {
	if g.settings.URL == "" {
		return domain.ErrGeneratorNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.settings.URL, nil)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "invalid preview url"), "url", g.settings.URL)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "preview probe failed"), "url", g.settings.URL)
	}
	defer resp.Body.Close() //nolint:errcheck // body is drained and discarded
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return zerr.With(zerr.New("preview probe failed"), "status", resp.StatusCode)
	}
	return nil
}

func (g *Generator) command(ctx context.Context, argv, env []string, stdout, stderr io.Writer) *exec.Cmd {
	cmdEnv := shell.Environment(env, nil)
	cmd := exec.CommandContext(ctx, shell.Executable(argv[0], cmdEnv), argv[1:]...) //nolint:gosec // user provided command
	cmd.Args[0] = argv[0]
	cmd.Dir = g.root
	cmd.Env = cmdEnv
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Own process group, so signals reach every child the generator spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// Process is a running preview server.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

func (p *Process) wait() {
	p.err = p.cmd.Wait()
	close(p.done)
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Stop sends SIGTERM to the process group and waits up to grace before sending SIGKILL.
// It returns ErrForcedShutdown when the kill was needed. Stop is idempotent.
func (p *Process) Stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(grace)
	})
	return p.stopErr
}

func (p *Process) stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	pgid := -p.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return zerr.Wrap(err, "failed to signal preview process")
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	_ = syscall.Kill(pgid, syscall.SIGKILL)
	<-p.done
	return domain.Annotate(domain.ErrForcedShutdown, "process", p.cmd.Args[0])
}
