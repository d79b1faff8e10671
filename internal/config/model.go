package config

// Model is the unified, format-agnostic representation of the entire pipeline
// configuration: the parameter store plus every rule definition, in
// registration order.
type Model struct {
	Params *Store
	Rules  []*Rule
}

// Rule is the format-agnostic representation of a single `rule` or
// `checkpoint` block. It is immutable once loaded.
type Rule struct {
	// Name uniquely identifies the rule within a pipeline.
	Name string

	// Checkpoint marks a rule whose concrete outputs are unknown until it
	// has executed. Its output templates are used for discovery, not for
	// producer matching.
	Checkpoint bool

	// Input and Output hold path templates. Placeholders remaining after
	// expression evaluation are rule wildcards, bound per instantiation.
	Input  []string
	Output []string

	// Shell is the action command template. Besides rule wildcards it may
	// reference {input}, {output}, {params.*}, {wildcards.*}, {threads}
	// and {log}.
	Shell string

	// Threads is the number of worker slots an instantiation occupies.
	Threads int

	// Log is an optional path template for the captured action output.
	Log string

	// WildcardsFrom names the checkpoint whose materialized outputs supply
	// the values for this rule's unbound input wildcards.
	WildcardsFrom string

	// Pos is the registration position, used for deterministic tie-breaking.
	Pos int
}

// Kind returns "checkpoint" or "rule", for identifiers and log lines.
func (r *Rule) Kind() string {
	if r.Checkpoint {
		return "checkpoint"
	}
	return "rule"
}
