// Package registry holds the rule definitions of a pipeline and answers the
// central resolution question: which rule produces a given concrete path,
// and under what wildcard binding.
package registry
