// Package pattern implements wildcard path templates: expansion of named
// placeholders against value sets, and matching of concrete paths back into
// wildcard bindings.
package pattern
