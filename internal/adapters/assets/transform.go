package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	lfs "go.trai.ch/lathe/internal/adapters/fs"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Executor = (*MinifyExecutor)(nil)
	_ ports.Executor = (*Syncer)(nil)
)

// mapping pairs a resolved input file with its destination.
type mapping struct {
	src string
	dst string
}

// plan maps every input file to dest, keeping its path relative to the static base of its pattern.
// An empty dest maps files onto themselves.
func plan(resolver ports.InputResolver, root, dest string, patterns []string) ([]mapping, error) {
	var out []mapping
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		files, err := resolver.ResolveInputs([]string{pattern}, root)
		if err != nil {
			return nil, err
		}

		base := patternDir(root, pattern)
		for _, file := range files {
			dst := file
			if dest != "" {
				rel, err := filepath.Rel(base, file)
				if err != nil {
					return nil, zerr.With(zerr.Wrap(err, "failed to map input"), "path", file)
				}
				if dst, err = within(root, path.Join(dest, filepath.ToSlash(rel))); err != nil {
					return nil, err
				}
			}
			if _, dup := seen[dst]; dup {
				continue
			}
			seen[dst] = struct{}{}
			out = append(out, mapping{src: file, dst: dst})
		}
	}
	return out, nil
}

// patternDir returns the directory holding the static part of pattern.
func patternDir(root, pattern string) string {
	base := filepath.Join(root, filepath.FromSlash(domain.PatternBase(pattern)))
	if !domain.HasMeta(pattern) {
		if info, err := os.Stat(base); err == nil && !info.IsDir() {
			base = filepath.Dir(base)
		}
	}
	return base
}

// MinifyExecutor implements the minify task kind.
type MinifyExecutor struct {
	resolver ports.InputResolver
	minifier *Minifier
}

// NewMinifyExecutor creates a MinifyExecutor.
func NewMinifyExecutor(resolver ports.InputResolver, minifier *Minifier) *MinifyExecutor {
	return &MinifyExecutor{resolver: resolver, minifier: minifier}
}

// Execute minifies every input into dest, or in place when the task has no dest.
// Files of unsupported types are copied unchanged.
func (e *MinifyExecutor) Execute(ctx context.Context, task *domain.Task, _ []string, stdout, _ io.Writer) error {
	root := task.WorkingDir.String()
	maps, err := plan(e.resolver, root, task.Dest.String(), domain.Strings(task.Inputs))
	if err != nil {
		return err
	}

	changed := 0
	for _, m := range maps {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(m.src)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", m.src)
		}
		out, err := e.minifier.Minify(m.src, data)
		if err != nil {
			return err
		}
		ok, err := writeIfChanged(m.dst, out)
		if err != nil {
			return err
		}
		if ok {
			changed++
		}
	}

	_, _ = fmt.Fprintf(stdout, "minified %d files, %d changed\n", len(maps), changed)
	return nil
}

// Syncer implements the sync task kind: it mirrors inputs into dest.
type Syncer struct {
	resolver ports.InputResolver
	walker   *lfs.Walker
}

// NewSyncer creates a Syncer.
func NewSyncer(resolver ports.InputResolver, walker *lfs.Walker) *Syncer {
	return &Syncer{resolver: resolver, walker: walker}
}

// Execute copies changed inputs into dest. With Prune set, files in dest
// without a matching input are deleted, along with directories left empty.
func (s *Syncer) Execute(ctx context.Context, task *domain.Task, _ []string, stdout, _ io.Writer) error {
	root := task.WorkingDir.String()
	dest, err := within(root, task.Dest.String())
	if err != nil {
		return err
	}

	maps, err := plan(s.resolver, root, task.Dest.String(), domain.Strings(task.Inputs))
	if err != nil {
		return err
	}

	copied := 0
	keep := make(map[string]struct{}, len(maps))
	for _, m := range maps {
		if err := ctx.Err(); err != nil {
			return err
		}
		keep[m.dst] = struct{}{}
		keep[m.src] = struct{}{}
		data, err := os.ReadFile(m.src)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", m.src)
		}
		ok, err := writeIfChanged(m.dst, data)
		if err != nil {
			return err
		}
		if ok {
			copied++
		}
	}

	pruned := 0
	if task.Prune {
		sources := make([]string, 0, len(task.Inputs))
		for _, pattern := range domain.Strings(task.Inputs) {
			sources = append(sources, patternDir(root, pattern))
		}
		if pruned, err = s.prune(dest, keep, sources); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(stdout, "synced %d files (%d copied, %d pruned)\n", len(maps), copied, pruned)
	return nil
}

// prune deletes the files under dest that are not in keep. Files under a
// source directory are never deleted.
func (s *Syncer) prune(dest string, keep map[string]struct{}, sources []string) (int, error) {
	var orphans []string
	for file := range s.walker.WalkFiles(dest, nil) {
		if _, ok := keep[file]; ok || underAny(file, sources) {
			continue
		}
		orphans = append(orphans, file)
	}

	var dirs []string
	for _, file := range orphans {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, outputError(err, file)
		}
		for dir := filepath.Dir(file); dir != dest && len(dir) > len(dest); dir = filepath.Dir(dir) {
			if !slices.Contains(dirs, dir) {
				dirs = append(dirs, dir)
			}
		}
	}

	// Deepest first, so parents are empty by the time they are tried.
	slices.SortFunc(dirs, func(a, b string) int { return len(b) - len(a) })
	for _, dir := range dirs {
		_ = os.Remove(dir)
	}
	return len(orphans), nil
}

func underAny(file string, dirs []string) bool {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, file)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
