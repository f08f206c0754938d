package ports

import "go.trai.ch/lathe/internal/core/domain"

// ConfigLoader defines the interface for loading the pipeline file.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds the pipeline file from the given working directory and returns the validated pipeline.
	// Every configuration problem is reported here, before any task runs.
	Load(cwd string) (*domain.Pipeline, error)

	// LoadFile loads the given pipeline file without searching for it.
	LoadFile(path string) (*domain.Pipeline, error)
}
