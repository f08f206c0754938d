// Package main is the entry point for the lathe asset pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/lathe/cmd/lathe/commands"
	"go.trai.ch/lathe/internal/app"
	"go.trai.ch/lathe/internal/core/domain"
	_ "go.trai.ch/lathe/internal/wiring"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitForced = 2
	// exitInterrupted follows the shell convention for SIGINT.
	exitInterrupted = 130
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// The logger is part of the components, so write directly.
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return exitFailed
	}
	defer cleanup()

	for _, opt := range opts {
		opt(components.App)
	}

	var cliOpts []commands.Option
	if f, ok := components.Logger.(commands.LogFormatter); ok {
		cliOpts = append(cliOpts, commands.WithLogFormatter(f))
	}

	cli := commands.New(components.App, cliOpts...)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		components.Logger.Error(err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrForcedShutdown):
		return exitForced
	case errors.Is(err, domain.ErrInterrupted):
		return exitInterrupted
	default:
		return exitFailed
	}
}
