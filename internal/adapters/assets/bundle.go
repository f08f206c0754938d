package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Bundler)(nil)

// Bundler implements the bundle task kind: ordered concatenation of sources into named outputs.
type Bundler struct {
	minifier *Minifier
}

// NewBundler creates a Bundler.
func NewBundler(minifier *Minifier) *Bundler {
	return &Bundler{minifier: minifier}
}

// ContentHash returns the hash substituted for the [hash] placeholder.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Execute builds every bundle of the task. Paths are relative to the task's working directory.
func (b *Bundler) Execute(ctx context.Context, task *domain.Task, _ []string, stdout, _ io.Writer) error {
	root := task.WorkingDir.String()
	for _, bundle := range task.Bundles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.build(root, task.Minify, bundle, stdout); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bundler) build(root string, minifyOutput bool, bundle domain.Bundle, stdout io.Writer) error {
	output := bundle.Output.String()

	var buf bytes.Buffer
	for _, src := range bundle.Sources {
		path, err := within(root, src.String())
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the task definition
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return zerr.With(domain.Annotate(domain.ErrInputNotFound, "path", src.String()), "bundle", output)
			}
			return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
		}
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}

	content := buf.Bytes()
	if minifyOutput {
		var err error
		if content, err = b.minifier.Minify(output, content); err != nil {
			return err
		}
	}

	hashed := strings.Contains(output, domain.HashPlaceholder)
	name := output
	if hashed {
		name = strings.ReplaceAll(output, domain.HashPlaceholder, ContentHash(content))
	}

	target, err := within(root, name)
	if err != nil {
		return err
	}
	changed, err := writeIfChanged(target, content)
	if err != nil {
		return err
	}

	if hashed {
		if err := removeStale(output, target); err != nil {
			return err
		}
	}

	status := "unchanged"
	if changed {
		status = "wrote"
	}
	_, _ = fmt.Fprintf(stdout, "%s %s (%d sources, %d bytes)\n", status, name, len(bundle.Sources), len(content))
	return nil
}

// removeStale deletes earlier content-hashed versions of output next to target.
func removeStale(output, target string) error {
	before, after, _ := strings.Cut(filepath.Base(filepath.FromSlash(output)), domain.HashPlaceholder)
	re := regexp.MustCompile("^" + regexp.QuoteMeta(before) + "[0-9a-f]{16}" + regexp.QuoteMeta(after) + "$")

	dir := filepath.Dir(target)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return outputError(err, dir)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || path == target || !re.MatchString(entry.Name()) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return outputError(err, path)
		}
	}
	return nil
}
