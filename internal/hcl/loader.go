package hcl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the entire pipeline loading process: file discovery,
// parsing, parameter merging (CLI overrides last), and rule expression
// evaluation into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, overrides map[string]string, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, parseErrorf("no .hcl pipeline files found in %v", paths)
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	parser := hclparse.NewParser()
	var roots []*fileRoot
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, parseErrorf("failed to parse %s: %s", file, diags.Error())
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, parseErrorf("failed to decode %s: %s", file, diags.Error())
		}
		roots = append(roots, &root)
	}

	params, err := l.mergeParams(roots, overrides)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parameters merged.", "keys", params.Keys())

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"params": params.Object()},
		Functions: map[string]function.Function{"expand": ExpandFunc},
	}

	model := &config.Model{Params: params}
	for _, root := range roots {
		for _, b := range root.Rules {
			rule, err := l.translateRule(b, false, len(model.Rules), evalCtx)
			if err != nil {
				return nil, err
			}
			model.Rules = append(model.Rules, rule)
		}
		for _, b := range root.Checkpoints {
			rule, err := l.translateRule(b, true, len(model.Rules), evalCtx)
			if err != nil {
				return nil, err
			}
			model.Rules = append(model.Rules, rule)
		}
	}
	logger.Debug("Pipeline model loaded.", "rule_count", len(model.Rules))

	return model, nil
}

// mergeParams evaluates every params block in file order, last writer wins,
// then layers the CLI overrides on top.
func (l *Loader) mergeParams(roots []*fileRoot, overrides map[string]string) (*config.Store, error) {
	// Params may call functions but cannot reference other params.
	evalCtx := &hcl.EvalContext{
		Functions: map[string]function.Function{"expand": ExpandFunc},
	}

	values := make(map[string]cty.Value)
	for _, root := range roots {
		for _, block := range root.Params {
			attrs, diags := block.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, parseErrorf("invalid params block: %s", diags.Error())
			}
			for _, attr := range sortedAttributes(attrs) {
				v, diags := attr.Expr.Value(evalCtx)
				if diags.HasErrors() {
					return nil, parseErrorf("param %q: %s", attr.Name, diags.Error())
				}
				values[attr.Name] = v
			}
		}
	}

	overrideVals := make(map[string]cty.Value, len(overrides))
	for key, raw := range overrides {
		overrideVals[key] = parseOverrideValue(raw)
	}
	return config.NewStore(values).Override(overrideVals), nil
}

// parseOverrideValue interprets a raw -set value as an HCL expression where
// possible (numbers, bools, lists), falling back to a plain string.
func parseOverrideValue(raw string) cty.Value {
	expr, diags := hclsyntax.ParseExpression([]byte(raw), "<override>", hcl.Pos{Line: 1, Column: 1})
	if !diags.HasErrors() {
		if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsWhollyKnown() && !v.IsNull() {
			return v
		}
	}
	return cty.StringVal(raw)
}

// translateRule evaluates a rule block's expressions into the agnostic model.
func (l *Loader) translateRule(b *ruleBlock, checkpoint bool, pos int, evalCtx *hcl.EvalContext) (*config.Rule, error) {
	kind := "rule"
	if checkpoint {
		kind = "checkpoint"
	}
	if b.Name == "" {
		return nil, parseErrorf("%s block without a name", kind)
	}

	input, err := evalStringList(b.Input, evalCtx)
	if err != nil {
		return nil, parseErrorf("%s %q: input: %s", kind, b.Name, err)
	}
	output, err := evalStringList(b.Output, evalCtx)
	if err != nil {
		return nil, parseErrorf("%s %q: output: %s", kind, b.Name, err)
	}
	if len(output) == 0 {
		return nil, parseErrorf("%s %q declares no outputs", kind, b.Name)
	}
	shell, err := evalString(b.Shell, evalCtx)
	if err != nil {
		return nil, parseErrorf("%s %q: shell: %s", kind, b.Name, err)
	}
	if shell == "" {
		return nil, parseErrorf("%s %q has an empty shell command", kind, b.Name)
	}
	threads, err := evalInt(b.Threads, 1, evalCtx)
	if err != nil {
		return nil, parseErrorf("%s %q: threads: %s", kind, b.Name, err)
	}
	if threads < 1 {
		return nil, parseErrorf("%s %q: threads must be at least 1", kind, b.Name)
	}
	logPath, err := evalString(b.Log, evalCtx)
	if err != nil {
		return nil, parseErrorf("%s %q: log: %s", kind, b.Name, err)
	}

	return &config.Rule{
		Name:          b.Name,
		Checkpoint:    checkpoint,
		Input:         input,
		Output:        output,
		Shell:         shell,
		Threads:       threads,
		Log:           logPath,
		WildcardsFrom: b.WildcardsFrom,
		Pos:           pos,
	}, nil
}

// findAllHCLFiles expands the given paths (files or directories) into a
// sorted list of pipeline files.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, parseErrorf("failed to find pipeline files in %s: %s", p, err)
		}
		files = append(files, found...)
	}
	sort.Strings(files)
	return files, nil
}

// sortedAttributes orders a body's attributes by source position so that
// last-writer-wins merging is deterministic.
func sortedAttributes(attrs hcl.Attributes) []*hcl.Attribute {
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Filename != out[j].Range.Filename {
			return out[i].Range.Filename < out[j].Range.Filename
		}
		return out[i].Range.Start.Byte < out[j].Range.Start.Byte
	})
	return out
}

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", config.ErrParse, fmt.Sprintf(format, args...))
}

func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	if expr == nil {
		return "", nil
	}
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("%s", diags.Error())
	}
	if v.IsNull() {
		return "", nil
	}
	list, err := toStringSlice(v)
	if err != nil {
		return "", err
	}
	if len(list) != 1 {
		return "", fmt.Errorf("expected a single string, got %d values", len(list))
	}
	return list[0], nil
}

func evalStringList(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	if v.IsNull() {
		return nil, nil
	}
	return toStringSlice(v)
}

func evalInt(expr hcl.Expression, def int, evalCtx *hcl.EvalContext) (int, error) {
	if expr == nil {
		return def, nil
	}
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("%s", diags.Error())
	}
	var out int
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return 0, err
	}
	return out, nil
}
