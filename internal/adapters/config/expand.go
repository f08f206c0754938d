package config

import (
	"regexp"

	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces every ${name} in s with the named option.
func expand(s string, options Options) (string, error) {
	var missing string
	out := varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		value, ok := options[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return value
	})
	if missing != "" {
		return "", domain.Annotate(domain.ErrUnknownVariable, "variable", missing)
	}
	return out, nil
}

func expandAll(values []string, options Options) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		expanded, err := expand(v, options)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

// expandReferences resolves ${name} references in a YAML pipeline file.
// HCL files are resolved by the HCL evaluator while decoding.
func (pf *Pipelinefile) expandReferences() error {
	for i := range pf.Tasks {
		if err := pf.Tasks[i].expandReferences(pf.Options); err != nil {
			return zerr.With(err, "task", pf.Tasks[i].Name)
		}
	}

	for i := range pf.Watch.Rules {
		rule := &pf.Watch.Rules[i]
		files, err := expandAll(rule.Files, pf.Options)
		if err != nil {
			return zerr.With(err, "rule", rule.ID)
		}
		rule.Files = files
	}

	gen := &pf.Generator
	var err error
	if gen.Build, err = expandAll(gen.Build, pf.Options); err != nil {
		return zerr.With(err, "field", "generator.build")
	}
	if gen.Serve, err = expandAll(gen.Serve, pf.Options); err != nil {
		return zerr.With(err, "field", "generator.serve")
	}
	if gen.URL, err = expand(gen.URL, pf.Options); err != nil {
		return zerr.With(err, "field", "generator.url")
	}
	return nil
}

func (t *TaskDTO) expandReferences(options Options) error {
	var err error
	if t.Cmd, err = expandAll(t.Cmd, options); err != nil {
		return err
	}
	if t.Input, err = expandAll(t.Input, options); err != nil {
		return err
	}
	if t.Target, err = expandAll(t.Target, options); err != nil {
		return err
	}
	if t.Dest, err = expand(t.Dest, options); err != nil {
		return err
	}
	if t.WorkingDir, err = expand(t.WorkingDir, options); err != nil {
		return err
	}
	for i := range t.Bundles {
		b := &t.Bundles[i]
		if b.Output, err = expand(b.Output, options); err != nil {
			return err
		}
		if b.Sources, err = expandAll(b.Sources, options); err != nil {
			return err
		}
	}
	for k, v := range t.Environment {
		if t.Environment[k], err = expand(v, options); err != nil {
			return err
		}
	}
	return nil
}
