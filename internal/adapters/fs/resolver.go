package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InputResolver = (*Resolver)(nil)

// Resolver implements the InputResolver interface with doublestar globs.
type Resolver struct {
	walker *Walker
}

// NewResolver creates a new Resolver.
func NewResolver(walker *Walker) *Resolver {
	return &Resolver{walker: walker}
}

// ResolveInputs resolves the given input patterns to a sorted list of absolute file paths.
// A literal path must exist; a directory expands to every file below it.
// A glob that matches nothing is not an error.
func (r *Resolver) ResolveInputs(inputs []string, root string) ([]string, error) {
	seen := make(map[string]struct{})
	fsys := os.DirFS(root)

	for _, input := range inputs {
		pattern := domain.CleanPattern(input)

		if !domain.HasMeta(pattern) {
			paths, err := r.expandLiteral(filepath.Join(root, filepath.FromSlash(pattern)))
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				seen[p] = struct{}{}
			}
			continue
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "pattern", input)
		}
		for _, match := range matches {
			seen[filepath.Join(root, filepath.FromSlash(match))] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for path := range seen {
		result = append(result, path)
	}
	slices.Sort(result)
	return result, nil
}

func (r *Resolver) expandLiteral(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, domain.Annotate(domain.ErrInputNotFound, "path", path)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	return slices.Collect(r.walker.WalkFiles(path, nil)), nil
}
