package ports

import (
	"context"
	"io"
	"time"

	"go.trai.ch/lathe/internal/core/domain"
)

// SiteGenerator drives the external static-site generator.
//
//go:generate mockgen -source=generator.go -destination=mocks/mock_generator.go -package=mocks
type SiteGenerator interface {
	// Generate renders the site once and returns when the generator exits.
	Generate(ctx context.Context, env []string, stdout, stderr io.Writer) error

	// Serve starts the long-running preview process.
	Serve(ctx context.Context, env []string, stdout, stderr io.Writer) (Process, error)

	// Probe checks the liveness of the preview server.
	Probe(ctx context.Context) error
}

// Process is a running child process.
type Process interface {
	// Done is closed when the process has exited.
	Done() <-chan struct{}

	// Err returns the exit error once Done is closed.
	Err() error

	// Stop sends SIGTERM to the process group and kills it after grace.
	// It returns ErrForcedShutdown when the kill was needed.
	Stop(grace time.Duration) error
}

// SiteGeneratorFactory creates the generator for a loaded pipeline.
type SiteGeneratorFactory func(settings domain.Generator, root string) SiteGenerator
