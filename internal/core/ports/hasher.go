package ports

import "go.trai.ch/lathe/internal/core/domain"

// Hasher defines the interface for computing hashes.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// ComputeInputHash computes the input hash of a task from its definition, environment and resolved input files.
	ComputeInputHash(task *domain.Task, env map[string]string, inputs []string) (string, error)

	// ComputeOutputHash computes the hash of the task outputs. Directories and globs are expanded.
	ComputeOutputHash(outputs []string, root string) (string, error)
}
