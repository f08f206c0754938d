package domain

import (
	"maps"
	"slices"
	"time"
)

// DefaultShutdownGrace bounds how long serve mode waits for in-flight work and the preview process.
const DefaultShutdownGrace = 10 * time.Second

// Generator holds the site generator commands.
type Generator struct {
	Build []string
	Serve []string
	URL   string
}

// Pipeline is a fully loaded and validated pipeline file.
type Pipeline struct {
	Root          string
	ConfigPath    string
	Registry      *Registry
	Graph         *Graph
	Rules         []WatchRule
	BuildTargets  []string
	ServeTargets  []string
	Generator     Generator
	Options       map[string]string
	Environment   map[string]string
	Debounce      time.Duration
	ShutdownGrace time.Duration
}

// Targets returns the targets for the given mode, defaulting to every task.
func (p *Pipeline) Targets(mode RunMode) []string {
	var targets []string
	switch mode {
	case ModeBuild:
		targets = p.BuildTargets
	case ModeServe, ModeWatch:
		targets = p.ServeTargets
	}
	if len(targets) == 0 {
		return []string{reservedTaskName}
	}
	return targets
}

// Environ renders the pipeline environment as sorted KEY=VALUE pairs.
func (p *Pipeline) Environ() []string {
	out := make([]string, 0, len(p.Environment))
	for _, k := range slices.Sorted(maps.Keys(p.Environment)) {
		out = append(out, k+"="+p.Environment[k])
	}
	return out
}
