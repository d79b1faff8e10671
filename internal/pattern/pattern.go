package pattern

import (
	"regexp"
	"strings"
)

// wildcardRe matches a named placeholder such as {sample} inside a path template.
var wildcardRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Binding maps wildcard names to the concrete values they were resolved to.
type Binding map[string]string

// Clone returns an independent copy of the binding.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Wildcards returns the placeholder names appearing in the template, in order
// of first appearance, without duplicates.
func Wildcards(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range wildcardRe.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// HasWildcards reports whether the template contains any placeholder.
func HasWildcards(template string) bool {
	return wildcardRe.MatchString(template)
}

// Apply substitutes every placeholder that has a value in the binding.
// Placeholders without a binding are left intact.
func Apply(template string, b Binding) string {
	return wildcardRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := b[name]; ok {
			return v
		}
		return m
	})
}

// Unbound returns the placeholder names in the template that have no value
// in the given binding.
func Unbound(template string, b Binding) []string {
	var missing []string
	for _, name := range Wildcards(template) {
		if _, ok := b[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Expand performs a cartesian substitution of the template's placeholders
// against the given value lists, yielding one concrete path per combination.
//
// The result order is deterministic: placeholders vary in template order with
// the leftmost placeholder outermost, and each value list is consumed in its
// given order. Placeholders with no entry in values are left intact.
func Expand(template string, values map[string][]string) []string {
	var names []string
	for _, name := range Wildcards(template) {
		if _, ok := values[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []string{template}
	}

	results := []string{}
	binding := make(Binding, len(names))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(names) {
			results = append(results, Apply(template, binding))
			return
		}
		name := names[depth]
		for _, v := range values[name] {
			binding[name] = v
			walk(depth + 1)
		}
		delete(binding, name)
	}
	walk(0)
	return results
}

// Match attempts to match a concrete path against the template. On success it
// returns the wildcard binding extracted from the path. A wildcard matches one
// or more characters, never crossing a path separator; a wildcard repeated in
// the template must match the same value at every occurrence.
func Match(template, path string) (Binding, bool) {
	var sb strings.Builder
	sb.WriteString(`\A`)
	var names []string
	last := 0
	for _, loc := range wildcardRe.FindAllStringSubmatchIndex(template, -1) {
		sb.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		sb.WriteString(`([^/]+)`)
		names = append(names, template[loc[2]:loc[3]])
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(template[last:]))
	sb.WriteString(`\z`)

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	binding := make(Binding, len(names))
	for i, name := range names {
		if prev, ok := binding[name]; ok && prev != m[i+1] {
			return nil, false
		}
		binding[name] = m[i+1]
	}
	return binding, true
}
