package config

import (
	"reflect"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Pipelinefile is the decoded form of lathe.yaml and lathe.hcl.
type Pipelinefile struct {
	Version       string          `yaml:"version" validate:"omitempty,oneof=1"`
	Root          string          `yaml:"root"`
	EnvFile       string          `yaml:"env_file"`
	Options       Options         `yaml:"options"`
	Stages        map[string]bool `yaml:"stages"`
	Tasks         TaskList        `yaml:"tasks" validate:"dive"`
	Order         [][]string      `yaml:"order" validate:"dive,min=2,dive,required"`
	Watch         WatchDTO        `yaml:"watch"`
	Build         []string        `yaml:"build" validate:"dive,required"`
	Serve         []string        `yaml:"serve" validate:"dive,required"`
	Generator     GeneratorDTO    `yaml:"generator"`
	ShutdownGrace string          `yaml:"shutdown_grace"`
}

// TaskDTO represents a task definition in the pipeline file.
type TaskDTO struct {
	Name        string            `yaml:"-" validate:"required"`
	Kind        string            `yaml:"kind" validate:"required,oneof=exec bundle minify sync generate"`
	Cmd         []string          `yaml:"cmd" validate:"required_if=Kind exec"`
	Input       []string          `yaml:"input" validate:"required_if=Kind minify,required_if=Kind sync,dive,required"`
	Target      []string          `yaml:"target" validate:"dive,required"`
	Bundles     BundleList        `yaml:"bundles" validate:"required_if=Kind bundle,dive"`
	Dest        string            `yaml:"dest" validate:"required_if=Kind sync"`
	Minify      bool              `yaml:"minify"`
	Prune       bool              `yaml:"prune"`
	Stage       string            `yaml:"stage"`
	DependsOn   []string          `yaml:"depends_on" validate:"dive,required"`
	Environment map[string]string `yaml:"environment"`
	WorkingDir  string            `yaml:"working_dir"`
}

// BundleDTO maps one output file to its ordered sources.
type BundleDTO struct {
	Output  string   `validate:"required"`
	Sources []string `validate:"required,dive,required"`
}

// WatchDTO holds the watch section.
type WatchDTO struct {
	Debounce string   `yaml:"debounce"`
	Rules    RuleList `yaml:"rules" validate:"dive"`
}

// RuleDTO maps file globs to the tasks they trigger.
type RuleDTO struct {
	ID    string   `yaml:"-" validate:"required"`
	Files []string `yaml:"files" validate:"required,dive,required"`
	Tasks []string `yaml:"tasks" validate:"required,dive,required"`
}

// GeneratorDTO holds the site generator commands.
type GeneratorDTO struct {
	Build []string `yaml:"build"`
	Serve []string `yaml:"serve"`
	URL   string   `yaml:"url" validate:"omitempty,url"`
}

// Options are the named values available to ${name} references.
// List values are joined with ", ".
type Options map[string]string

// UnmarshalYAML accepts scalar and sequence option values.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return zerr.With(zerr.New("options must be a mapping"), "line", value.Line)
	}
	out := make(Options, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch val.Kind {
		case yaml.SequenceNode:
			var items []string
			if err := val.Decode(&items); err != nil {
				return err
			}
			out[key.Value] = strings.Join(items, ", ")
		default:
			var s string
			if err := val.Decode(&s); err != nil {
				return err
			}
			out[key.Value] = s
		}
	}
	*o = out
	return nil
}

// TaskList keeps tasks in file order, which is the graph's tie-break order.
type TaskList []TaskDTO

// UnmarshalYAML decodes the task mapping preserving key order.
func (l *TaskList) UnmarshalYAML(value *yaml.Node) error {
	return decodeOrdered(value, (*[]TaskDTO)(l), func(name string, node *yaml.Node) (TaskDTO, error) {
		var dto TaskDTO
		if err := strictDecode(node, &dto); err != nil {
			return dto, err
		}
		dto.Name = name
		return dto, nil
	})
}

// BundleList keeps bundle outputs in file order.
type BundleList []BundleDTO

// UnmarshalYAML decodes the output -> sources mapping preserving key order.
func (l *BundleList) UnmarshalYAML(value *yaml.Node) error {
	return decodeOrdered(value, (*[]BundleDTO)(l), func(output string, node *yaml.Node) (BundleDTO, error) {
		var sources []string
		if err := node.Decode(&sources); err != nil {
			return BundleDTO{}, err
		}
		return BundleDTO{Output: output, Sources: sources}, nil
	})
}

// RuleList keeps watch rules in file order.
type RuleList []RuleDTO

// UnmarshalYAML decodes the rule mapping preserving key order.
func (l *RuleList) UnmarshalYAML(value *yaml.Node) error {
	return decodeOrdered(value, (*[]RuleDTO)(l), func(id string, node *yaml.Node) (RuleDTO, error) {
		var dto RuleDTO
		if err := strictDecode(node, &dto); err != nil {
			return dto, err
		}
		dto.ID = id
		return dto, nil
	})
}

func decodeOrdered[T any](value *yaml.Node, out *[]T, decode func(key string, node *yaml.Node) (T, error)) error {
	if value.Kind != yaml.MappingNode {
		return zerr.With(zerr.New("expected a mapping"), "line", value.Line)
	}
	items := make([]T, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		item, err := decode(value.Content[i].Value, value.Content[i+1])
		if err != nil {
			return zerr.With(err, "key", value.Content[i].Value)
		}
		items = append(items, item)
	}
	*out = items
	return nil
}

// strictDecode decodes node into out and rejects keys out does not declare.
// Nested decoders do not inherit the top-level decoder's KnownFields setting.
func strictDecode(node *yaml.Node, out any) error {
	if node.Kind == yaml.MappingNode {
		known := yamlKeys(reflect.TypeOf(out).Elem())
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if _, ok := known[key.Value]; !ok {
				return zerr.With(zerr.With(zerr.New("unknown field"), "field", key.Value), "line", key.Line)
			}
		}
	}
	return node.Decode(out)
}

func yamlKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}
