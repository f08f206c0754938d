package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidConfig is the parent of every pipeline configuration error.
	// All configuration errors are reported before any task runs.
	ErrInvalidConfig = zerr.New("invalid pipeline configuration")

	// ErrTaskAlreadyExists is returned when attempting to register a task with a name that already exists.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrOutputCollision is returned when two tasks declare overlapping outputs.
	ErrOutputCollision = zerr.New("task outputs collide")

	// ErrMissingDependency is returned when a task or ordering hint references a task that is not registered.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrUndeclaredOverlap is returned when a task reads another task's outputs without depending on it.
	ErrUndeclaredOverlap = zerr.New("task reads outputs of a task it does not depend on")

	// ErrReservedTaskName is returned when a task uses a reserved name (e.g., "all").
	ErrReservedTaskName = zerr.New("task name 'all' is reserved")

	// ErrInvalidTaskName is returned when a task name is empty or contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrPruneOverlapsInputs is returned when a pruning sync task's dest contains its own inputs.
	ErrPruneOverlapsInputs = zerr.New("sync dest with prune contains the task's inputs")

	// ErrInvalidTaskKind is returned when a task declares an unknown kind.
	ErrInvalidTaskKind = zerr.New("invalid task kind")

	// ErrInvalidWatchRule is returned when a watch rule has no files or references no tasks.
	ErrInvalidWatchRule = zerr.New("invalid watch rule")

	// ErrConfigReadFailed is returned when the pipeline file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read pipeline file")

	// ErrConfigParseFailed is returned when the pipeline file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse pipeline file")

	// ErrConfigNotFound is returned when no pipeline file can be found.
	ErrConfigNotFound = zerr.New("could not find lathe.yaml or lathe.hcl")

	// ErrConfigValidationFailed is returned when a pipeline file field breaks a schema rule.
	ErrConfigValidationFailed = zerr.New("pipeline file failed validation")

	// ErrEnvFileLoadFailed is returned when the configured env file cannot be loaded.
	ErrEnvFileLoadFailed = zerr.New("failed to load env file")

	// ErrUnknownVariable is returned when a ${name} reference has no matching option.
	ErrUnknownVariable = zerr.New("unknown variable")

	// ErrCycleDetected is returned when a cycle is detected in the task dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is not registered.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrBuildExecutionFailed is returned when a build run terminates with Failure.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrTaskExecutionFailed is returned when a task execution fails.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrWatchFailed is returned when file system monitoring cannot be (re)started.
	ErrWatchFailed = zerr.New("file watching failed")

	// ErrForcedShutdown is returned when serve mode does not stop within the shutdown grace period.
	ErrForcedShutdown = zerr.New("forced shutdown")

	// ErrInterrupted is returned when the user quits the interactive task view.
	ErrInterrupted = zerr.New("run interrupted")

	// ErrPreviewFailed is returned when the preview process cannot be started.
	ErrPreviewFailed = zerr.New("failed to start preview process")

	// ErrGeneratorNotConfigured is returned when a generate task runs without a generator build command.
	ErrGeneratorNotConfigured = zerr.New("site generator is not configured")

	// ErrNoExecutorForKind is returned when the dispatcher has no executor for a task kind.
	ErrNoExecutorForKind = zerr.New("no executor registered for task kind")

	// ErrOutputPathOutsideRoot is returned when an output path is outside the pipeline root.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside pipeline root")

	// ErrInputNotFound is returned when a declared literal input file is missing.
	ErrInputNotFound = zerr.New("input not found")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when the build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when the build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when the build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when the build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrInputResolutionFailed is returned when input resolution fails.
	ErrInputResolutionFailed = zerr.New("failed to resolve inputs")

	// ErrInputHashComputationFailed is returned when input hash computation fails.
	ErrInputHashComputationFailed = zerr.New("failed to compute input hash")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrWriteHashFailed is returned when writing the hash to the digest fails.
	ErrWriteHashFailed = zerr.New("failed to write hash to digest")

	// ErrOutputWriteFailed is returned when a transform cannot write its output.
	ErrOutputWriteFailed = zerr.New("failed to write output")

	// ErrMinifyFailed is returned when minification of an asset fails.
	ErrMinifyFailed = zerr.New("failed to minify asset")
)

// Annotate attaches a metadata pair to err while keeping err reachable through errors.Is.
func Annotate(err error, key string, value any) error {
	if err == nil {
		return nil
	}
	return zerr.With(zerr.Wrap(err, ""), key, value)
}

// ConfigError marks err as a configuration error so that callers can match ErrInvalidConfig.
func ConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

type configError struct {
	err error
}

func (e *configError) Error() string {
	return e.err.Error()
}

// Message lets the pretty logger print the cause chain without repeating the wrapped text.
func (e *configError) Message() string {
	return ErrInvalidConfig.Error()
}

func (e *configError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.err}
}
