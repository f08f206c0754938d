// Package assets implements the built-in transforms: bundling, minification and directory sync.
// Every transform writes through a temporary file and a rename, and leaves a file untouched
// when its bytes would not change, so re-running with unchanged inputs is a no-op.
package assets

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

// writeIfChanged atomically replaces path with data. It reports whether the file changed.
func writeIfChanged(path string, data []byte) (bool, error) {
	old, err := os.ReadFile(path) //nolint:gosec // Path is derived from the task definition
	if err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, outputError(err, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return false, outputError(err, path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return false, outputError(err, path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, outputError(err, path)
	}
	if err := tmp.Chmod(domain.FilePerm); err != nil {
		_ = tmp.Close()
		return false, outputError(err, path)
	}
	if err := tmp.Close(); err != nil {
		return false, outputError(err, path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, outputError(err, path)
	}
	return true, nil
}

func outputError(err error, path string) error {
	return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
}

// within resolves rel against root and rejects paths that escape it.
func within(root, rel string) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return "", domain.Annotate(domain.ErrOutputPathOutsideRoot, "path", rel)
	}
	return path, nil
}
