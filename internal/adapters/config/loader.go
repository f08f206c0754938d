// Package config loads lathe.yaml and lathe.hcl pipeline files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// generateTaskName is the task registered for the site generator's one-shot build.
const generateTaskName = "generate"

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader for YAML and HCL pipeline files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load searches cwd and its parents for a pipeline file and loads it.
func (l *Loader) Load(cwd string) (*domain.Pipeline, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(configPath)
}

// LoadFile loads and validates the pipeline file at configPath.
// Every error it returns matches domain.ErrInvalidConfig, except dependency cycles,
// which are reported as *domain.CycleError.
func (l *Loader) LoadFile(configPath string) (*domain.Pipeline, error) {
	configPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, domain.ConfigError(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()))
	}

	pf, err := readPipelinefile(configPath)
	if err != nil {
		return nil, configErr(zerr.With(err, "file", configPath))
	}

	p, err := l.build(configPath, pf)
	if err != nil {
		return nil, configErr(err)
	}
	return p, nil
}

// configErr marks err as a configuration error unless it already is one or is a cycle.
func configErr(err error) error {
	if errors.Is(err, domain.ErrInvalidConfig) || errors.Is(err, domain.ErrCycleDetected) {
		return err
	}
	return domain.ConfigError(err)
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		yamlPath := filepath.Join(currentDir, domain.PipelineFileName)
		hclPath := filepath.Join(currentDir, domain.PipelineHCLFileName)
		_, yamlErr := os.Stat(yamlPath)
		_, hclErr := os.Stat(hclPath)

		switch {
		case yamlErr == nil && hclErr == nil:
			l.Logger.Warn(fmt.Sprintf("both %s and %s found in %s, using %s",
				domain.PipelineFileName, domain.PipelineHCLFileName, currentDir, domain.PipelineFileName))
			return yamlPath, nil
		case yamlErr == nil:
			return yamlPath, nil
		case hclErr == nil:
			return hclPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return "", domain.ConfigError(domain.Annotate(domain.ErrConfigNotFound, "cwd", cwd))
}

func readPipelinefile(configPath string) (*Pipelinefile, error) {
	// #nosec G304 -- configPath is provided by the user
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if filepath.Ext(configPath) == ".hcl" {
		return decodeHCL(data, configPath)
	}
	return decodeYAML(data)
}

func decodeYAML(data []byte) (*Pipelinefile, error) {
	var pf Pipelinefile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	if err := pf.expandReferences(); err != nil {
		return nil, err
	}
	return &pf, nil
}

func (l *Loader) build(configPath string, pf *Pipelinefile) (*domain.Pipeline, error) {
	pf.applyDefaults()
	if err := validateFile(pf); err != nil {
		return nil, err
	}

	root, err := resolveRoot(configPath, pf.Root)
	if err != nil {
		return nil, err
	}

	env, err := loadEnvironment(root, pf)
	if err != nil {
		return nil, err
	}

	removed := l.removeDisabledStages(pf)
	if err := l.addGenerateTask(pf); err != nil {
		return nil, err
	}

	reg := domain.NewRegistry()
	for i := range pf.Tasks {
		task, err := l.buildTask(&pf.Tasks[i], root, pf.Generator, removed)
		if err != nil {
			return nil, zerr.With(err, "task", pf.Tasks[i].Name)
		}
		if err := reg.Register(task); err != nil {
			return nil, err
		}
	}

	g, err := domain.BuildGraph(reg, buildHints(pf.Order, removed))
	if err != nil {
		return nil, err
	}
	g.SetRoot(root)

	rules := buildRules(pf.Watch.Rules, removed)
	if err := domain.ValidateWatchRules(rules, g); err != nil {
		return nil, err
	}

	buildTargets, err := l.targets("build", pf.Build, reg, removed)
	if err != nil {
		return nil, err
	}
	serveTargets, err := l.targets("serve", pf.Serve, reg, removed)
	if err != nil {
		return nil, err
	}

	debounce, err := parseDuration("watch.debounce", pf.Watch.Debounce, domain.DefaultDebounce)
	if err != nil {
		return nil, err
	}
	grace, err := parseDuration("shutdown_grace", pf.ShutdownGrace, domain.DefaultShutdownGrace)
	if err != nil {
		return nil, err
	}

	return &domain.Pipeline{
		Root:         root,
		ConfigPath:   configPath,
		Registry:     reg,
		Graph:        g,
		Rules:        rules,
		BuildTargets: buildTargets,
		ServeTargets: serveTargets,
		Generator: domain.Generator{
			Build: pf.Generator.Build,
			Serve: pf.Generator.Serve,
			URL:   pf.Generator.URL,
		},
		Options:       pf.Options,
		Environment:   env,
		Debounce:      debounce,
		ShutdownGrace: grace,
	}, nil
}

func (pf *Pipelinefile) applyDefaults() {
	for i := range pf.Tasks {
		if pf.Tasks[i].Kind == "" {
			pf.Tasks[i].Kind = string(domain.KindExec)
		}
	}
	if pf.Options == nil {
		pf.Options = Options{}
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return validate
}

func validateFile(pf *Pipelinefile) error {
	err := getValidator().Struct(pf)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return zerr.Wrap(err, domain.ErrConfigValidationFailed.Error())
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	annotated := domain.Annotate(domain.ErrConfigValidationFailed, "field", field)
	annotated = zerr.With(annotated, "rule", fe.Tag())
	if fe.Param() != "" {
		annotated = zerr.With(annotated, "param", fe.Param())
	}
	return annotated
}

// resolveRoot resolves the configured root against the pipeline file's directory.
func resolveRoot(configPath, configuredRoot string) (string, error) {
	configDir := filepath.Dir(configPath)
	root := filepath.Clean(configDir)
	switch {
	case configuredRoot == "":
	case filepath.IsAbs(configuredRoot):
		root = filepath.Clean(configuredRoot)
	default:
		root = filepath.Clean(filepath.Join(configDir, configuredRoot))
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "root", root)
	}
	if !info.IsDir() {
		return "", zerr.With(zerr.New("pipeline root is not a directory"), "root", root)
	}
	return root, nil
}

// loadEnvironment builds the pipeline environment from the env file and the options.
// node_modules/.bin under the root is prepended to PATH so npm-installed tools resolve.
func loadEnvironment(root string, pf *Pipelinefile) (map[string]string, error) {
	env := make(map[string]string)
	if pf.EnvFile != "" {
		envPath := pf.EnvFile
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(root, envPath)
		}
		values, err := godotenv.Read(envPath)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrEnvFileLoadFailed.Error()), "path", envPath)
		}
		for k, v := range values {
			env[k] = v
		}
	}

	if browsers, ok := pf.Options["browsers"]; ok {
		env["BROWSERSLIST"] = browsers
	}

	bin := filepath.Join(root, "node_modules", ".bin")
	if p, ok := env["PATH"]; ok && p != "" {
		bin += string(os.PathListSeparator) + p
	}
	env["PATH"] = bin
	return env, nil
}

// removeDisabledStages drops the tasks of disabled stages and returns their names.
func (l *Loader) removeDisabledStages(pf *Pipelinefile) map[string]struct{} {
	used := make(map[string]bool, len(pf.Stages))
	removed := make(map[string]struct{})
	kept := pf.Tasks[:0]
	for _, t := range pf.Tasks {
		if t.Stage != "" {
			used[t.Stage] = true
			if enabled, ok := pf.Stages[t.Stage]; ok && !enabled {
				removed[t.Name] = struct{}{}
				continue
			}
		}
		kept = append(kept, t)
	}
	pf.Tasks = kept

	stages := make([]string, 0, len(pf.Stages))
	for stage := range pf.Stages {
		stages = append(stages, stage)
	}
	slices.Sort(stages)
	for _, stage := range stages {
		if !used[stage] {
			l.Logger.Warn(fmt.Sprintf("stage %q matches no task", stage))
		}
	}
	return removed
}

// addGenerateTask registers the site generator's build as the first task
// when a generator is configured and the file declares no generate task itself.
func (l *Loader) addGenerateTask(pf *Pipelinefile) error {
	declared := slices.ContainsFunc(pf.Tasks, func(t TaskDTO) bool {
		return t.Kind == string(domain.KindGenerate) || t.Name == generateTaskName
	})
	if len(pf.Generator.Build) == 0 {
		for _, t := range pf.Tasks {
			if t.Kind == string(domain.KindGenerate) {
				return zerr.With(domain.Annotate(domain.ErrGeneratorNotConfigured, "task", t.Name), "field", "generator.build")
			}
		}
		return nil
	}
	if declared {
		return nil
	}
	generate := TaskDTO{Name: generateTaskName, Kind: string(domain.KindGenerate)}
	pf.Tasks = append([]TaskDTO{generate}, pf.Tasks...)
	return nil
}

func (l *Loader) buildTask(dto *TaskDTO, root string, gen GeneratorDTO, removed map[string]struct{}) (*domain.Task, error) {
	kind := domain.TaskKind(dto.Kind)

	workingDir := domain.NewInternedString(root)
	if kind == domain.KindExec {
		workingDir = resolveTaskWorkingDir(root, dto.WorkingDir)
	} else if dto.WorkingDir != "" {
		l.Logger.Warn(fmt.Sprintf("working_dir of %s task %q is ignored", kind, dto.Name))
	}

	command := dto.Cmd
	if kind == domain.KindGenerate && len(command) == 0 {
		command = gen.Build
	}

	outputs, err := cleanPaths(dto.Target)
	if err != nil {
		return nil, err
	}
	dest, err := cleanPath(dto.Dest)
	if err != nil {
		return nil, err
	}

	if kind == domain.KindSync && dto.Prune {
		if err := checkPruneDest(dest, dto.Input); err != nil {
			return nil, zerr.With(err, "task", dto.Name)
		}
	}

	var deps []string
	for _, dep := range dto.DependsOn {
		if _, gone := removed[dep]; !gone {
			deps = append(deps, dep)
		}
	}

	task := &domain.Task{
		Name:         domain.NewInternedString(dto.Name),
		Kind:         kind,
		Command:      command,
		Inputs:       canonicalizeStrings(cleanPatterns(dto.Input)),
		Outputs:      canonicalizeStrings(outputs),
		Dest:         domain.NewInternedString(dest),
		Minify:       dto.Minify,
		Prune:        dto.Prune,
		Stage:        dto.Stage,
		Dependencies: domain.NewInternedStrings(deps),
		Environment:  dto.Environment,
		WorkingDir:   workingDir,
	}

	for _, b := range dto.Bundles {
		output, err := cleanPath(b.Output)
		if err != nil {
			return nil, err
		}
		if strings.Contains(path.Dir(output), domain.HashPlaceholder) {
			err := domain.Annotate(domain.ErrConfigValidationFailed, "field", "bundles")
			return nil, zerr.With(zerr.With(err, "output", b.Output), "reason", domain.HashPlaceholder+" is only allowed in the file name")
		}
		task.Bundles = append(task.Bundles, domain.Bundle{
			Output:  domain.NewInternedString(output),
			Sources: domain.NewInternedStrings(cleanPatterns(b.Sources)),
		})
	}
	return task, nil
}

// checkPruneDest rejects a pruning dest that contains an input's static base,
// since pruning there would delete source files.
func checkPruneDest(dest string, inputs []string) error {
	for _, input := range inputs {
		if base := domain.PatternBase(input); domain.IsWithin(dest, base) {
			return zerr.With(domain.Annotate(domain.ErrPruneOverlapsInputs, "dest", dest), "input", input)
		}
	}
	return nil
}

// buildHints turns each order entry into consecutive "before" pairs, skipping removed tasks.
func buildHints(order [][]string, removed map[string]struct{}) []domain.Hint {
	var hints []domain.Hint
	for _, chain := range order {
		kept := slices.DeleteFunc(slices.Clone(chain), func(name string) bool {
			_, gone := removed[name]
			return gone
		})
		for i := 0; i+1 < len(kept); i++ {
			hints = append(hints, domain.Hint{Before: kept[i], After: kept[i+1]})
		}
	}
	return hints
}

// buildRules converts the watch rules, dropping removed tasks and rules left without tasks.
func buildRules(dtos []RuleDTO, removed map[string]struct{}) []domain.WatchRule {
	rules := make([]domain.WatchRule, 0, len(dtos))
	for _, dto := range dtos {
		var tasks []string
		for _, name := range dto.Tasks {
			if _, gone := removed[name]; !gone {
				tasks = append(tasks, name)
			}
		}
		if len(tasks) == 0 && len(dto.Tasks) > 0 {
			continue
		}
		rules = append(rules, domain.WatchRule{
			ID:    dto.ID,
			Files: cleanPatterns(dto.Files),
			Tasks: domain.NewInternedStrings(tasks),
		})
	}
	return rules
}

func (l *Loader) targets(field string, names []string, reg *domain.Registry, removed map[string]struct{}) ([]string, error) {
	var out []string
	for _, name := range names {
		if _, gone := removed[name]; gone {
			continue
		}
		if name != "all" && !reg.Has(domain.NewInternedString(name)) {
			return nil, zerr.With(domain.Annotate(domain.ErrTaskNotFound, "target", name), "field", field)
		}
		out = append(out, name)
	}
	if len(names) > 0 && len(out) == 0 {
		l.Logger.Warn(fmt.Sprintf("every %s target belongs to a disabled stage, running all tasks", field))
	}
	return out, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "field", field)
	}
	if d < 0 {
		return 0, zerr.With(domain.Annotate(domain.ErrConfigValidationFailed, "field", field), "value", value)
	}
	return d, nil
}

func cleanPatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = domain.CleanPattern(p)
	}
	return out
}

// cleanPath normalises an output path and rejects paths that leave the root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	cleaned := domain.CleanPattern(p)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", domain.Annotate(domain.ErrOutputPathOutsideRoot, "path", p)
	}
	return cleaned, nil
}

func cleanPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		cleaned, err := cleanPath(p)
		if err != nil {
			return nil, err
		}
		out[i] = cleaned
	}
	return out, nil
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}
	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return domain.NewInternedStrings(slices.Compact(sorted))
}

// resolveTaskWorkingDir resolves an exec task's working directory against the root.
func resolveTaskWorkingDir(root, configured string) domain.InternedString {
	if configured == "" {
		return domain.NewInternedString(root)
	}
	if filepath.IsAbs(configured) {
		return domain.NewInternedString(filepath.Clean(configured))
	}
	return domain.NewInternedString(filepath.Clean(filepath.Join(root, configured)))
}
