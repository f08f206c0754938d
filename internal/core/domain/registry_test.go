package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/core/domain"
)

func newTask(name string, deps ...string) *domain.Task {
	return &domain.Task{
		Name:         domain.NewInternedString(name),
		Kind:         domain.KindExec,
		Dependencies: domain.NewInternedStrings(deps),
	}
}

func withOutputs(t *domain.Task, outputs ...string) *domain.Task {
	t.Outputs = domain.NewInternedStrings(outputs)
	return t
}

func withInputs(t *domain.Task, inputs ...string) *domain.Task {
	t.Inputs = domain.NewInternedStrings(inputs)
	return t
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []*domain.Task
		wantErr error
	}{
		{
			name:  "distinct tasks",
			tasks: []*domain.Task{withOutputs(newTask("sass"), "css"), withOutputs(newTask("uglify"), "scripts/build")},
		},
		{
			name:    "duplicate name",
			tasks:   []*domain.Task{newTask("sass"), newTask("sass")},
			wantErr: domain.ErrTaskAlreadyExists,
		},
		{
			name:    "output inside another output",
			tasks:   []*domain.Task{withOutputs(newTask("sass"), "css"), withOutputs(newTask("critical"), "css/critical.css")},
			wantErr: domain.ErrOutputCollision,
		},
		{
			name: "hashed bundle inside a directory output",
			tasks: []*domain.Task{
				withOutputs(newTask("copy"), "scripts/build"),
				{
					Name: domain.NewInternedString("bundle"),
					Kind: domain.KindBundle,
					Bundles: []domain.Bundle{{
						Output:  domain.NewInternedString("scripts/build/app.[hash].js"),
						Sources: domain.NewInternedStrings([]string{"scripts/nav.js"}),
					}},
				},
			},
			wantErr: domain.ErrOutputCollision,
		},
		{
			name:    "reserved name",
			tasks:   []*domain.Task{newTask("all")},
			wantErr: domain.ErrReservedTaskName,
		},
		{
			name:    "name with colon",
			tasks:   []*domain.Task{newTask("imagemin:svgs")},
			wantErr: domain.ErrInvalidTaskName,
		},
		{
			name:    "empty name",
			tasks:   []*domain.Task{newTask("")},
			wantErr: domain.ErrInvalidTaskName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := domain.NewRegistry()
			var err error
			for _, task := range tt.tasks {
				if err = reg.Register(task); err != nil {
					break
				}
			}

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, len(tt.tasks), reg.Len())
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := domain.NewRegistry()
	require.NoError(t, reg.Register(withInputs(newTask("sass"), "scss/**/*.scss")))

	task, err := reg.Resolve("sass")
	require.NoError(t, err)
	assert.Equal(t, []string{"scss/**/*.scss"}, domain.Strings(task.Inputs))

	_, err = reg.Resolve("missing")
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.NotErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRegistry_KeepsRegistrationOrder(t *testing.T) {
	reg := domain.NewRegistry()
	for _, name := range []string{"jekyll", "sass", "postcss", "uglify"} {
		require.NoError(t, reg.Register(newTask(name)))
	}

	assert.Equal(t, []string{"jekyll", "sass", "postcss", "uglify"}, reg.Names())
	assert.True(t, reg.Has(domain.NewInternedString("postcss")))
	assert.False(t, reg.Has(domain.NewInternedString("imagemin")))
}

func TestRegistry_StoresCopy(t *testing.T) {
	reg := domain.NewRegistry()
	task := newTask("sass")
	require.NoError(t, reg.Register(task))

	task.Kind = domain.KindSync

	stored, err := reg.Resolve("sass")
	require.NoError(t, err)
	assert.Equal(t, domain.KindExec, stored.Kind)
}
