package domain

import "strings"

// TaskKind selects the executor that runs a task.
type TaskKind string

const (
	// KindExec runs an external command (sass, postcss, imagemin, ...).
	KindExec TaskKind = "exec"
	// KindBundle concatenates ordered sources into named outputs.
	KindBundle TaskKind = "bundle"
	// KindMinify minifies each input into a destination directory.
	KindMinify TaskKind = "minify"
	// KindSync mirrors inputs into a destination directory.
	KindSync TaskKind = "sync"
	// KindGenerate renders the site through the external site generator.
	KindGenerate TaskKind = "generate"
)

// Kinds lists every task kind understood by the dispatcher.
func Kinds() []TaskKind {
	return []TaskKind{KindExec, KindBundle, KindMinify, KindSync, KindGenerate}
}

// HashPlaceholder is replaced with a content hash in bundle output names.
const HashPlaceholder = "[hash]"

// Bundle maps one output file to the ordered list of files it is built from.
type Bundle struct {
	Output  InternedString
	Sources []InternedString
}

// Task represents a named, idempotent file transform in the pipeline.
// It uses InternedString for fields that are frequently repeated to save memory.
type Task struct {
	Name         InternedString
	Kind         TaskKind
	Command      []string
	Inputs       []InternedString
	Outputs      []InternedString
	Bundles      []Bundle
	Dest         InternedString
	Minify       bool
	Prune        bool
	Stage        string
	Dependencies []InternedString
	Environment  map[string]string
	WorkingDir   InternedString
}

// InputPatterns returns the declared input globs plus every bundle source.
func (t *Task) InputPatterns() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok || p == "" {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, in := range t.Inputs {
		add(in.String())
	}
	for _, b := range t.Bundles {
		for _, src := range b.Sources {
			add(src.String())
		}
	}
	return out
}

// OutputPatterns returns the declared targets, bundle outputs and destination.
// A content hash placeholder is reported as a wildcard.
func (t *Task) OutputPatterns() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		p = strings.ReplaceAll(p, HashPlaceholder, "*")
		if _, ok := seen[p]; ok || p == "" {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, o := range t.Outputs {
		add(o.String())
	}
	for _, b := range t.Bundles {
		add(b.Output.String())
	}
	add(t.Dest.String())
	return out
}
