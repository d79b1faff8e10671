package registry

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

// Producer pairs a rule with the wildcard binding extracted by matching a
// concrete target path against one of the rule's output templates.
type Producer struct {
	Rule    *config.Rule
	Binding pattern.Binding
}

// Registry holds all registered rule definitions for a single pipeline.
type Registry struct {
	byName map[string]*config.Rule
	rules  []*config.Rule
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{byName: make(map[string]*config.Rule)}
}

// FromModel builds a registry from a loaded config model, registering every
// rule in order.
func FromModel(model *config.Model) (*Registry, error) {
	r := New()
	for _, rule := range model.Rules {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a rule definition. Rule names must be unique.
func (r *Registry) Register(rule *config.Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule with empty name")
	}
	if _, exists := r.byName[rule.Name]; exists {
		return fmt.Errorf("%s %q: %w", rule.Kind(), rule.Name, ErrDuplicateRule)
	}
	r.byName[rule.Name] = rule
	r.rules = append(r.rules, rule)
	return nil
}

// Rules returns all registered rules in registration order.
func (r *Registry) Rules() []*config.Rule {
	return r.rules
}

// Lookup returns the rule with the given name.
func (r *Registry) Lookup(name string) (*config.Rule, bool) {
	rule, ok := r.byName[name]
	return rule, ok
}

// FindProducer matches the target path against every rule's output templates
// and returns the producing rule with its extracted wildcard binding, or nil
// if no rule produces the path.
//
// Checkpoint outputs are excluded from matching: their concrete paths are
// unknown until the checkpoint has executed, after which they exist on disk
// and need no producer. Two distinct rules claiming the same concrete path is
// a configuration error.
func (r *Registry) FindProducer(target string) (*Producer, error) {
	var matches []*Producer
	for _, rule := range r.rules {
		if rule.Checkpoint {
			continue
		}
		for _, tmpl := range rule.Output {
			if binding, ok := pattern.Match(tmpl, target); ok {
				matches = append(matches, &Producer{Rule: rule, Binding: binding})
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Rule.Name
		}
		return nil, fmt.Errorf("path %q claimed by rules %s: %w",
			target, strings.Join(names, ", "), ErrAmbiguousProducer)
	}
}
