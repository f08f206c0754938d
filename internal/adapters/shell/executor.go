// Package shell runs exec tasks as external commands inside a pseudo-terminal.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

// killDelay is how long a cancelled command gets between SIGTERM and SIGKILL.
const killDelay = 5 * time.Second

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec and pty.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs the task's command and waits for it to complete.
// The PTY merges stdout and stderr, so all output is written to stdout.
func (e *Executor) Execute(ctx context.Context, task *domain.Task, env []string, stdout, _ io.Writer) error {
	if len(task.Command) == 0 {
		return nil
	}

	name := task.Command[0]
	cmdEnv := Environment(env, task.Environment)

	cmd := exec.CommandContext(ctx, Executable(name, cmdEnv), task.Command[1:]...) //nolint:gosec // user provided command
	cmd.Args[0] = name
	cmd.Dir = task.WorkingDir.String()
	cmd.Env = cmdEnv
	// pty.Start puts the child in a new session, so it leads its own process group.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = killDelay

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to start command"), "command", name)
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		// Reading the master returns EIO once the child side is closed.
		_, _ = io.Copy(stdout, ptmx)
	}()

	waitErr := cmd.Wait()
	<-ioDone
	_ = ptmx.Close()

	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.Wrap(waitErr, "command failed"), "exit_code", exitCode)
	}
	return nil
}

// allowListedEnvVars are the system environment variables inherited by commands.
var allowListedEnvVars = map[string]struct{}{
	"HOME": {},
	"TERM": {},
	"USER": {},
	"PATH": {},
	"LANG": {},
}

// Environment builds a command environment from the allow-listed variables of the
// current process, the pipeline environment and the task environment.
func Environment(pipelineEnv []string, taskEnv map[string]string) []string {
	return resolveEnvironment(os.Environ(), pipelineEnv, taskEnv)
}

// resolveEnvironment merges the allow-listed system environment, the pipeline
// environment and the task environment, in increasing priority.
// A PATH from the pipeline environment is prepended to the system PATH.
func resolveEnvironment(sysEnv, pipelineEnv []string, taskEnv map[string]string) []string {
	envMap := filterSystemEnv(sysEnv)
	applyPipelineEnv(envMap, pipelineEnv)

	for k, v := range taskEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

func filterSystemEnv(sysEnv []string) map[string]string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			if _, allowed := allowListedEnvVars[k]; allowed {
				envMap[k] = v
			}
		}
	}
	return envMap
}

func applyPipelineEnv(envMap map[string]string, pipelineEnv []string) {
	for _, entry := range pipelineEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if sysPath := envMap["PATH"]; k == "PATH" && sysPath != "" {
			v = v + string(os.PathListSeparator) + sysPath
		}
		envMap[k] = v
	}
}

// Executable resolves name against the PATH of env, falling back to name itself.
func Executable(name string, env []string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if lp, err := lookPath(name, env); err == nil {
		return lp
	}
	return name
}

// lookPath searches for an executable in the directories named by PATH in env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "PATH="); ok {
			path = after
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
