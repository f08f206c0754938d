package domain

import (
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// DefaultDebounce is the watch coalescing window used when the pipeline file sets none.
const DefaultDebounce = 100 * time.Millisecond

// WatchRule maps a set of file globs to the tasks that must re-run when one of them changes.
// Rules are loaded once and never modified afterwards.
type WatchRule struct {
	ID    string
	Files []string
	Tasks []InternedString
}

// Matches reports whether the root-relative path matches any of the rule's globs.
func (r WatchRule) Matches(path string) bool {
	for _, pattern := range r.Files {
		if MatchPath(pattern, path) {
			return true
		}
	}
	return false
}

// TriggeredTasks returns the union of tasks of every rule that matches at least one path.
// Each task appears once, in first-seen order; callers order the result with Graph.Sort.
func TriggeredTasks(rules []WatchRule, paths []string) []string {
	var out []string
	for _, rule := range rules {
		if !slices.ContainsFunc(paths, rule.Matches) {
			continue
		}
		for _, task := range rule.Tasks {
			if name := task.String(); !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// ValidateWatchRules checks that every rule has globs and only references tasks in the graph.
func ValidateWatchRules(rules []WatchRule, g *Graph) error {
	for _, rule := range rules {
		if len(rule.Files) == 0 || len(rule.Tasks) == 0 {
			return ConfigError(Annotate(ErrInvalidWatchRule, "rule", rule.ID))
		}
		for _, task := range rule.Tasks {
			if _, ok := g.GetTask(task); !ok {
				err := Annotate(ErrMissingDependency, "rule", rule.ID)
				return ConfigError(zerr.With(err, "task", task.String()))
			}
		}
	}
	return nil
}
