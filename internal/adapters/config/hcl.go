package config

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/zerr"
)

// hclFile mirrors Pipelinefile using task, bundle and rule blocks.
type hclFile struct {
	Version       string          `hcl:"version,optional"`
	Root          string          `hcl:"root,optional"`
	EnvFile       string          `hcl:"env_file,optional"`
	Options       *hclOptions     `hcl:"options,block"`
	Stages        map[string]bool `hcl:"stages,optional"`
	Tasks         []hclTask       `hcl:"task,block"`
	Order         [][]string      `hcl:"order,optional"`
	Watch         *hclWatch       `hcl:"watch,block"`
	Build         []string        `hcl:"build,optional"`
	Serve         []string        `hcl:"serve,optional"`
	Generator     *hclGenerator   `hcl:"generator,block"`
	ShutdownGrace string          `hcl:"shutdown_grace,optional"`
}

type hclOptions struct {
	Remain hcl.Body `hcl:",remain"`
}

type hclTask struct {
	Name        string            `hcl:"name,label"`
	Kind        string            `hcl:"kind,optional"`
	Cmd         []string          `hcl:"cmd,optional"`
	Input       []string          `hcl:"input,optional"`
	Target      []string          `hcl:"target,optional"`
	Bundles     []hclBundle       `hcl:"bundle,block"`
	Dest        string            `hcl:"dest,optional"`
	Minify      bool              `hcl:"minify,optional"`
	Prune       bool              `hcl:"prune,optional"`
	Stage       string            `hcl:"stage,optional"`
	DependsOn   []string          `hcl:"depends_on,optional"`
	Environment map[string]string `hcl:"environment,optional"`
	WorkingDir  string            `hcl:"working_dir,optional"`
}

type hclBundle struct {
	Output  string   `hcl:"output,label"`
	Sources []string `hcl:"sources"`
}

type hclWatch struct {
	Debounce string    `hcl:"debounce,optional"`
	Rules    []hclRule `hcl:"rule,block"`
}

type hclRule struct {
	ID    string   `hcl:"id,label"`
	Files []string `hcl:"files"`
	Tasks []string `hcl:"tasks"`
}

type hclGenerator struct {
	Build []string `hcl:"build,optional"`
	Serve []string `hcl:"serve,optional"`
	URL   string   `hcl:"url,optional"`
}

var optionsSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "options"}},
}

// decodeHCL parses an HCL pipeline file. The options block is evaluated first
// and exposed as variables, so ${name} references are resolved by HCL itself.
func decodeHCL(data []byte, filename string) (*Pipelinefile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, zerr.Wrap(diags, domain.ErrConfigParseFailed.Error())
	}

	content, _, diags := file.Body.PartialContent(optionsSchema)
	if diags.HasErrors() {
		return nil, zerr.Wrap(diags, domain.ErrConfigParseFailed.Error())
	}
	options, err := decodeHCLOptions(content.Blocks)
	if err != nil {
		return nil, err
	}

	evalCtx := &hcl.EvalContext{Variables: make(map[string]cty.Value, len(options))}
	for name, value := range options {
		evalCtx.Variables[name] = cty.StringVal(value)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &parsed); diags.HasErrors() {
		if name, ok := unknownVariable(diags, options); ok {
			return nil, domain.Annotate(domain.ErrUnknownVariable, "variable", name)
		}
		return nil, zerr.Wrap(diags, domain.ErrConfigParseFailed.Error())
	}

	pf := parsed.toPipelinefile()
	pf.Options = options
	return pf, nil
}

func decodeHCLOptions(blocks hcl.Blocks) (Options, error) {
	options := make(Options)
	for _, block := range blocks {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, zerr.Wrap(diags, domain.ErrConfigParseFailed.Error())
		}
		for name, attr := range attrs {
			value, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, zerr.With(zerr.Wrap(diags, domain.ErrConfigParseFailed.Error()), "option", name)
			}
			s, err := ctyString(value)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "option", name)
			}
			options[name] = s
		}
	}
	return options, nil
}

// ctyString renders a scalar as a string and a list or tuple as a ", " separated string.
func ctyString(value cty.Value) (string, error) {
	ty := value.Type()
	if ty.IsListType() || ty.IsTupleType() || ty.IsSetType() {
		var items []string
		for it := value.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := ctyString(elem)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return strings.Join(items, ", "), nil
	}
	converted, err := convert.Convert(value, cty.String)
	if err != nil {
		return "", err
	}
	if converted.IsNull() {
		return "", nil
	}
	return converted.AsString(), nil
}

func unknownVariable(diags hcl.Diagnostics, options Options) (string, bool) {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError || diag.Summary != "Unknown variable" {
			continue
		}
		if diag.Expression != nil {
			for _, traversal := range diag.Expression.Variables() {
				if _, ok := options[traversal.RootName()]; !ok {
					return traversal.RootName(), true
				}
			}
		}
		return "", true
	}
	return "", false
}

func (f *hclFile) toPipelinefile() *Pipelinefile {
	pf := &Pipelinefile{
		Version:       f.Version,
		Root:          f.Root,
		EnvFile:       f.EnvFile,
		Stages:        f.Stages,
		Order:         f.Order,
		Build:         f.Build,
		Serve:         f.Serve,
		ShutdownGrace: f.ShutdownGrace,
	}
	for _, t := range f.Tasks {
		dto := TaskDTO{
			Name:        t.Name,
			Kind:        t.Kind,
			Cmd:         t.Cmd,
			Input:       t.Input,
			Target:      t.Target,
			Dest:        t.Dest,
			Minify:      t.Minify,
			Prune:       t.Prune,
			Stage:       t.Stage,
			DependsOn:   t.DependsOn,
			Environment: t.Environment,
			WorkingDir:  t.WorkingDir,
		}
		for _, b := range t.Bundles {
			dto.Bundles = append(dto.Bundles, BundleDTO(b))
		}
		pf.Tasks = append(pf.Tasks, dto)
	}
	if f.Watch != nil {
		pf.Watch.Debounce = f.Watch.Debounce
		for _, r := range f.Watch.Rules {
			pf.Watch.Rules = append(pf.Watch.Rules, RuleDTO(r))
		}
	}
	if f.Generator != nil {
		pf.Generator = GeneratorDTO(*f.Generator)
	}
	return pf
}
