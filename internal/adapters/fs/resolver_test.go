package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/fs"
	"go.trai.ch/lathe/internal/core/domain"
)

func TestResolver_ResolveInputs(t *testing.T) {
	root := t.TempDir()
	nav := writeFile(t, root, "scripts/nav.js", "nav()")
	global := writeFile(t, root, "scripts/global.js", "global()")
	partial := writeFile(t, root, "scss/base/_nav.scss", "")
	main := writeFile(t, root, "scss/main.sass", "")
	writeFile(t, root, "scss/notes.txt", "")
	logo := writeFile(t, root, "images/logo.png", "png")

	resolver := fs.NewResolver(fs.NewWalker())

	tests := []struct {
		name   string
		inputs []string
		want   []string
	}{
		{name: "doublestar with alternatives", inputs: []string{"scss/**/*.{scss,sass}"}, want: []string{partial, main}},
		{name: "literal files keep sorted order", inputs: []string{"scripts/nav.js", "scripts/global.js"}, want: []string{global, nav}},
		{name: "directory expands", inputs: []string{"images"}, want: []string{logo}},
		{name: "duplicates collapse", inputs: []string{"scripts/*.js", "./scripts/nav.js"}, want: []string{global, nav}},
		{name: "glob without matches", inputs: []string{"fonts/**/*.woff2"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.ResolveInputs(tt.inputs, root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_ResolveInputs_MissingLiteral(t *testing.T) {
	resolver := fs.NewResolver(fs.NewWalker())

	_, err := resolver.ResolveInputs([]string{"scripts/missing.js"}, t.TempDir())
	require.ErrorIs(t, err, domain.ErrInputNotFound)
}

func TestResolver_ResolveInputs_BadPattern(t *testing.T) {
	resolver := fs.NewResolver(fs.NewWalker())

	_, err := resolver.ResolveInputs([]string{"scss/[.scss"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to glob path")
}

func TestResolver_ReturnsAbsolutePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")

	got, err := fs.NewResolver(fs.NewWalker()).ResolveInputs([]string{"*.txt"}, root)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, filepath.IsAbs(got[0]))
}
