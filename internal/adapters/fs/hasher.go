package fs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher provides hashing functionality for tasks and files.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// ComputeInputHash computes a single hash representing the task definition,
// its environment and the content of its resolved input files.
func (h *Hasher) ComputeInputHash(task *domain.Task, env map[string]string, inputs []string) (string, error) {
	hasher := xxhash.New()

	hashTaskDefinition(task, hasher)
	hashEnvironment(env, hasher)

	for _, path := range inputs {
		if err := h.hashFile(path, path, hasher); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func writeField(hasher *xxhash.Digest, values ...string) {
	for _, v := range values {
		_, _ = hasher.WriteString(v)
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0}) // Section separator
}

// hashTaskDefinition hashes every field that changes what the task produces.
func hashTaskDefinition(task *domain.Task, hasher *xxhash.Digest) {
	writeField(hasher, task.Name.String(), string(task.Kind))
	writeField(hasher, task.Command...)
	writeField(hasher, domain.Strings(task.Inputs)...)
	writeField(hasher, domain.Strings(task.Outputs)...)
	for _, b := range task.Bundles {
		writeField(hasher, append([]string{b.Output.String()}, domain.Strings(b.Sources)...)...)
	}
	writeField(hasher, task.Dest.String(), fmt.Sprint(task.Minify), fmt.Sprint(task.Prune))
	writeField(hasher, domain.Strings(task.Dependencies)...)
}

// hashEnvironment hashes environment variables in a deterministic order.
func hashEnvironment(env map[string]string, hasher *xxhash.Digest) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		_, _ = hasher.WriteString(k)
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.WriteString(env[k])
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}

func (h *Hasher) hashFile(path, label string, mainHasher io.Writer) error {
	_, _ = io.WriteString(mainHasher, label)
	_, _ = mainHasher.Write([]byte{0})

	hash, err := h.ComputeFileHash(path)
	if err != nil {
		return err
	}

	if err := binary.Write(mainHasher, binary.LittleEndian, hash); err != nil {
		return zerr.Wrap(err, domain.ErrWriteHashFailed.Error())
	}
	return nil
}

// ComputeOutputHash computes the hash of the output files.
// Directories are walked and globs are expanded; a missing literal output is an error,
// which callers treat as a cache miss.
func (h *Hasher) ComputeOutputHash(outputs []string, root string) (string, error) {
	files := make(map[string]struct{})
	for _, output := range outputs {
		if err := h.expandOutput(output, root, files); err != nil {
			return "", err
		}
	}

	sorted := make([]string, 0, len(files))
	for rel := range files {
		sorted = append(sorted, rel)
	}
	slices.Sort(sorted)

	hasher := xxhash.New()
	for _, rel := range sorted {
		if err := h.hashFile(filepath.Join(root, rel), rel, hasher); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func (h *Hasher) expandOutput(output, root string, files map[string]struct{}) error {
	pattern := domain.CleanPattern(strings.ReplaceAll(output, domain.HashPlaceholder, "*"))

	if domain.HasMeta(pattern) {
		matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to glob output"), "pattern", output)
		}
		for _, m := range matches {
			files[filepath.FromSlash(m)] = struct{}{}
		}
		return nil
	}

	path := filepath.Join(root, filepath.FromSlash(pattern))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return zerr.With(zerr.Wrap(iofs.ErrNotExist, "output file missing"), "path", path)
		}
		return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}

	if !info.IsDir() {
		files[filepath.FromSlash(pattern)] = struct{}{}
		return nil
	}
	for file := range h.walker.WalkFiles(path, nil) {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to relativize output"), "path", file)
		}
		files[rel] = struct{}{}
	}
	return nil
}
