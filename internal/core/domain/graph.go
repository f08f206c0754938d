// Package domain contains the core pipeline models: tasks, the registry, the dependency graph,
// watch rules and build runs.
package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Hint is an explicit ordering constraint: Before runs before After.
type Hint struct {
	Before string
	After  string
}

func (h Hint) String() string {
	return h.Before + " before " + h.After
}

// CycleError reports a dependency cycle and every task that takes part in it.
type CycleError struct {
	Members []string
}

// Error renders the cycle as a path, e.g. "cycle detected: A -> B -> A".
func (e *CycleError) Error() string {
	return ErrCycleDetected.Error() + ": " + e.Path()
}

// Path renders the cycle members, closing the loop on the first member.
func (e *CycleError) Path() string {
	if len(e.Members) == 0 {
		return ""
	}
	return strings.Join(append(slices.Clone(e.Members), e.Members[0]), " -> ")
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

const (
	unvisited uint8 = iota
	visiting
	visited
)

// Graph is the validated, topologically ordered task graph.
type Graph struct {
	root       string
	tasks      map[InternedString]Task
	registered []InternedString
	dependents map[InternedString][]InternedString
	order      []InternedString
	position   map[InternedString]int
	ancestors  map[InternedString]map[InternedString]struct{}
}

// BuildGraph derives the dependency graph from the registry and the ordering hints.
// Declared dependencies and hints become edges; the resulting order lists every
// task after all of its dependencies, with unrelated tasks kept in registration order.
// It fails with a configuration error for unknown names or undeclared output/input
// overlaps, and with a *CycleError when the edges form a cycle.
func BuildGraph(reg *Registry, hints []Hint) (*Graph, error) {
	idx := reg.index()
	g := &Graph{
		tasks:      make(map[InternedString]Task, reg.Len()),
		dependents: make(map[InternedString][]InternedString),
		position:   make(map[InternedString]int, reg.Len()),
		ancestors:  make(map[InternedString]map[InternedString]struct{}),
	}

	deps := make(map[InternedString][]InternedString, reg.Len())
	addEdge := func(task, dep InternedString) {
		if !slices.Contains(deps[task], dep) {
			deps[task] = append(deps[task], dep)
		}
	}

	for t := range reg.Tasks() {
		g.registered = append(g.registered, t.Name)
		for _, dep := range t.Dependencies {
			if _, ok := idx[dep]; !ok {
				err := Annotate(ErrMissingDependency, "task", t.Name.String())
				return nil, ConfigError(zerr.With(err, "dependency", dep.String()))
			}
			addEdge(t.Name, dep)
		}
	}

	for _, h := range hints {
		before, after := NewInternedString(h.Before), NewInternedString(h.After)
		for _, n := range []InternedString{before, after} {
			if _, ok := idx[n]; !ok {
				err := Annotate(ErrMissingDependency, "hint", h.String())
				return nil, ConfigError(zerr.With(err, "dependency", n.String()))
			}
		}
		addEdge(after, before)
	}

	for t := range reg.Tasks() {
		d := deps[t.Name]
		slices.SortFunc(d, func(a, b InternedString) int { return idx[a] - idx[b] })

		task := *t
		task.Dependencies = d
		g.tasks[t.Name] = task
		for _, dep := range d {
			g.dependents[dep] = append(g.dependents[dep], t.Name)
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	if err := g.checkOverlaps(); err != nil {
		return nil, err
	}
	return g, nil
}

// sort runs a depth-first topological sort with three-colour marking.
// Roots and dependencies are visited in registration order, so the result is stable.
func (g *Graph) sort() error {
	marks := make(map[InternedString]uint8, len(g.tasks))
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		marks[u] = visiting
		path = append(path, u)

		for _, dep := range g.tasks[u].Dependencies {
			switch marks[dep] {
			case visiting:
				start := slices.Index(path, dep)
				return &CycleError{Members: Strings(path[start:])}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		marks[u] = visited
		path = path[:len(path)-1]
		g.position[u] = len(g.order)
		g.order = append(g.order, u)
		return nil
	}

	for _, name := range g.registered {
		if marks[name] == unvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkOverlaps enforces that a task reading another task's outputs depends on it.
// A task may read its own outputs, which covers in-place transforms.
func (g *Graph) checkOverlaps() error {
	for _, consumer := range g.registered {
		c := g.tasks[consumer]
		inputs := c.InputPatterns()
		if len(inputs) == 0 {
			continue
		}
		for _, producer := range g.registered {
			if producer == consumer {
				continue
			}
			p := g.tasks[producer]
			in, out, ok := firstOverlap(inputs, p.OutputPatterns())
			if !ok || g.DependsOn(consumer, producer) {
				continue
			}
			err := Annotate(ErrUndeclaredOverlap, "task", consumer.String())
			err = zerr.With(err, "input", in)
			err = zerr.With(err, "producer", producer.String())
			err = zerr.With(err, "output", out)
			return ConfigError(err)
		}
	}
	return nil
}

// Root returns the pipeline root directory.
func (g *Graph) Root() string {
	return g.root
}

// SetRoot sets the pipeline root directory.
func (g *Graph) SetRoot(root string) {
	g.root = root
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.order)
}

// GetTask returns the task with the given name. Its Dependencies include hinted edges.
func (g *Graph) GetTask(name InternedString) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Dependents returns the tasks that depend directly on name, in registration order.
func (g *Graph) Dependents(name InternedString) []InternedString {
	return g.dependents[name]
}

// Order returns the resolved topological order.
func (g *Graph) Order() []string {
	return Strings(g.order)
}

// Walk yields tasks in topological order.
func (g *Graph) Walk() iter.Seq[Task] {
	return func(yield func(Task) bool) {
		for _, name := range g.order {
			if !yield(g.tasks[name]) {
				return
			}
		}
	}
}

// Sort orders names by the resolved topological order, dropping duplicates and unknown names.
func (g *Graph) Sort(names []string) []string {
	seen := make(map[InternedString]struct{}, len(names))
	picked := make([]InternedString, 0, len(names))
	for _, n := range names {
		name := NewInternedString(n)
		if _, ok := g.position[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		picked = append(picked, name)
	}
	slices.SortFunc(picked, func(a, b InternedString) int { return g.position[a] - g.position[b] })
	return Strings(picked)
}

// Closure returns the targets plus all of their transitive dependencies in topological order.
// The reserved name "all" selects every task.
func (g *Graph) Closure(targets []string) ([]InternedString, error) {
	if slices.Contains(targets, reservedTaskName) {
		return slices.Clone(g.order), nil
	}

	want := make(map[InternedString]struct{})
	var collect func(name InternedString)
	collect = func(name InternedString) {
		if _, ok := want[name]; ok {
			return
		}
		want[name] = struct{}{}
		for _, dep := range g.tasks[name].Dependencies {
			collect(dep)
		}
	}

	for _, target := range targets {
		name := NewInternedString(target)
		if _, ok := g.tasks[name]; !ok {
			return nil, Annotate(ErrTaskNotFound, "task", target)
		}
		collect(name)
	}

	out := make([]InternedString, 0, len(want))
	for _, name := range g.order {
		if _, ok := want[name]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// DependsOn reports whether task transitively depends on dep.
func (g *Graph) DependsOn(task, dep InternedString) bool {
	_, ok := g.ancestorsOf(task)[dep]
	return ok
}

func (g *Graph) ancestorsOf(name InternedString) map[InternedString]struct{} {
	if set, ok := g.ancestors[name]; ok {
		return set
	}
	set := make(map[InternedString]struct{})
	g.ancestors[name] = set
	for _, dep := range g.tasks[name].Dependencies {
		set[dep] = struct{}{}
		for a := range g.ancestorsOf(dep) {
			set[a] = struct{}{}
		}
	}
	return set
}
