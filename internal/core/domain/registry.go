package domain

import (
	"iter"
	"strings"

	"go.trai.ch/zerr"
)

// reservedTaskName selects every task on the command line and cannot be registered.
const reservedTaskName = "all"

// Registry is the static table of pipeline tasks, populated once at startup.
// Registration order is preserved and used as the tie-break for graph ordering.
type Registry struct {
	tasks map[InternedString]*Task
	order []InternedString
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[InternedString]*Task),
	}
}

// Register adds a task to the registry.
// It fails with a configuration error when the name is invalid or already taken,
// or when one of the task's outputs collides with the outputs of a registered task.
// Register never touches the filesystem.
func (r *Registry) Register(t *Task) error {
	name := t.Name.String()
	if err := ValidateTaskName(name); err != nil {
		return ConfigError(err)
	}

	if _, exists := r.tasks[t.Name]; exists {
		return ConfigError(Annotate(ErrTaskAlreadyExists, "task", name))
	}

	for _, other := range r.order {
		existing := r.tasks[other]
		if out, theirs, ok := firstOverlap(t.OutputPatterns(), existing.OutputPatterns()); ok {
			err := Annotate(ErrOutputCollision, "task", name)
			err = zerr.With(err, "output", out)
			err = zerr.With(err, "conflicts_with", other.String()+": "+theirs)
			return ConfigError(err)
		}
	}

	stored := *t
	r.tasks[t.Name] = &stored
	r.order = append(r.order, t.Name)
	return nil
}

// Resolve returns the task registered under name.
func (r *Registry) Resolve(name string) (*Task, error) {
	t, ok := r.tasks[NewInternedString(name)]
	if !ok {
		return nil, Annotate(ErrTaskNotFound, "task", name)
	}
	return t, nil
}

// Has reports whether a task with the given name is registered.
func (r *Registry) Has(name InternedString) bool {
	_, ok := r.tasks[name]
	return ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns the task names in registration order.
func (r *Registry) Names() []string {
	return Strings(r.order)
}

// Tasks yields the registered tasks in registration order.
func (r *Registry) Tasks() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		for _, name := range r.order {
			if !yield(r.tasks[name]) {
				return
			}
		}
	}
}

// index returns the registration position of every task.
func (r *Registry) index() map[InternedString]int {
	idx := make(map[InternedString]int, len(r.order))
	for i, name := range r.order {
		idx[name] = i
	}
	return idx
}

// ValidateTaskName rejects empty names, the reserved name and names containing ':' or whitespace.
func ValidateTaskName(name string) error {
	if name == reservedTaskName {
		return ErrReservedTaskName
	}
	if name == "" || strings.ContainsAny(name, ": \t\n") {
		return Annotate(ErrInvalidTaskName, "task", name)
	}
	return nil
}

func firstOverlap(ours, theirs []string) (string, string, bool) {
	for _, a := range ours {
		for _, b := range theirs {
			if PatternsOverlap(a, b) {
				return a, b, true
			}
		}
	}
	return "", "", false
}
