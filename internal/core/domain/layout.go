package domain

import "path/filepath"

const (
	// StateDirName is the name of the internal state directory inside the pipeline root.
	StateDirName = ".lathe"

	// StoreDirName is the name of the build info store directory.
	StoreDirName = "store"

	// PipelineFileName is the name of the YAML pipeline file.
	PipelineFileName = "lathe.yaml"

	// PipelineHCLFileName is the name of the HCL pipeline file.
	PipelineHCLFileName = "lathe.hcl"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the state directory relative to the pipeline root.
func DefaultStatePath() string {
	return StateDirName
}

// DefaultStorePath returns the build info store path relative to the pipeline root.
// It joins .lathe and store.
func DefaultStorePath() string {
	return filepath.Join(StateDirName, StoreDirName)
}
