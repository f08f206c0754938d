package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/core/domain"
)

func TestExpand(t *testing.T) {
	options := Options{"styles_dir": "scss", "css_dir": "css", "browsers": "last 2 versions, ie 11"}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "no references", in: "scripts/nav.js", want: "scripts/nav.js"},
		{name: "single", in: "${styles_dir}/**/*.scss", want: "scss/**/*.scss"},
		{name: "several", in: "${styles_dir}:${css_dir}", want: "scss:css"},
		{name: "list option", in: "--browsers=${browsers}", want: "--browsers=last 2 versions, ie 11"},
		{name: "braces without dollar", in: "images/*.{png,jpg}", want: "images/*.{png,jpg}"},
		{name: "unknown", in: "${images_dir}/**", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expand(tt.in, options)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrUnknownVariable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelinefile_ExpandReferences(t *testing.T) {
	pf := &Pipelinefile{
		Options: Options{"css_dir": "css", "site": "_site"},
		Tasks: TaskList{{
			Name:        "sync",
			Kind:        "sync",
			Input:       []string{"${css_dir}/**"},
			Dest:        "${site}/${css_dir}",
			Environment: map[string]string{"OUT": "${site}"},
			Bundles:     BundleList{{Output: "${site}/app.js", Sources: []string{"${css_dir}/a.js"}}},
		}},
		Watch:     WatchDTO{Rules: RuleList{{ID: "css", Files: []string{"${css_dir}/*.css"}, Tasks: []string{"sync"}}}},
		Generator: GeneratorDTO{Build: []string{"jekyll", "build", "-d", "${site}"}},
	}

	require.NoError(t, pf.expandReferences())

	task := pf.Tasks[0]
	assert.Equal(t, []string{"css/**"}, task.Input)
	assert.Equal(t, "_site/css", task.Dest)
	assert.Equal(t, "_site", task.Environment["OUT"])
	assert.Equal(t, "_site/app.js", task.Bundles[0].Output)
	assert.Equal(t, []string{"css/a.js"}, task.Bundles[0].Sources)
	assert.Equal(t, []string{"css/*.css"}, pf.Watch.Rules[0].Files)
	assert.Equal(t, []string{"jekyll", "build", "-d", "_site"}, pf.Generator.Build)
}

func TestPipelinefile_ExpandReferencesNamesTask(t *testing.T) {
	pf := &Pipelinefile{
		Options: Options{},
		Tasks:   TaskList{{Name: "sass", Cmd: []string{"sass", "${styles_dir}"}}},
	}

	err := pf.expandReferences()
	require.ErrorIs(t, err, domain.ErrUnknownVariable)
	assert.Contains(t, err.Error(), domain.ErrUnknownVariable.Error())
}
