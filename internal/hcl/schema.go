package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is the top-level structure of a pipeline file for decoding.
type fileRoot struct {
	Params      []*paramsBlock `hcl:"params,block"`
	Rules       []*ruleBlock   `hcl:"rule,block"`
	Checkpoints []*ruleBlock   `hcl:"checkpoint,block"`
}

// paramsBlock holds raw parameter attributes; they are evaluated in a
// separate pass so rule expressions can reference the merged result.
type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// ruleBlock represents a `rule` or `checkpoint` block. Attributes that may
// reference params or call functions are kept as expressions and evaluated
// against the pipeline's eval context.
type ruleBlock struct {
	Name          string         `hcl:"name,label"`
	Input         hcl.Expression `hcl:"input,optional"`
	Output        hcl.Expression `hcl:"output"`
	Shell         hcl.Expression `hcl:"shell"`
	Threads       hcl.Expression `hcl:"threads,optional"`
	Log           hcl.Expression `hcl:"log,optional"`
	WildcardsFrom string         `hcl:"wildcards_from,optional"`
}
