package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/core/domain"
)

func watchRule(id string, files []string, tasks ...string) domain.WatchRule {
	return domain.WatchRule{ID: id, Files: files, Tasks: domain.NewInternedStrings(tasks)}
}

func TestTriggeredTasks(t *testing.T) {
	rules := []domain.WatchRule{
		watchRule("sass", []string{"scss/**/*.{scss,sass}"}, "sass", "postcss"),
		watchRule("css", []string{"css/*.css"}, "postcss"),
		watchRule("javascript", []string{"scripts/*.js"}, "jshint", "uglify"),
	}

	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{name: "single rule", paths: []string{"scss/_nav.scss"}, want: []string{"sass", "postcss"}},
		{name: "overlapping rules dedupe", paths: []string{"css/main.css", "scss/a.scss"}, want: []string{"sass", "postcss"}},
		{name: "no match", paths: []string{"README.md"}, want: nil},
		{name: "repeated path", paths: []string{"scripts/nav.js", "scripts/nav.js"}, want: []string{"jshint", "uglify"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.TriggeredTasks(rules, tt.paths))
		})
	}
}

func TestValidateWatchRules(t *testing.T) {
	g, err := domain.BuildGraph(mustRegistry(t, newTask("sass")), nil)
	require.NoError(t, err)

	require.NoError(t, domain.ValidateWatchRules([]domain.WatchRule{watchRule("sass", []string{"scss/**"}, "sass")}, g))

	err = domain.ValidateWatchRules([]domain.WatchRule{watchRule("sass", []string{"scss/**"}, "postcss")}, g)
	require.ErrorIs(t, err, domain.ErrMissingDependency)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	err = domain.ValidateWatchRules([]domain.WatchRule{watchRule("empty", nil, "sass")}, g)
	require.ErrorIs(t, err, domain.ErrInvalidWatchRule)
}
