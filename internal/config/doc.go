// Package config defines the format-agnostic pipeline model: the immutable
// parameter store and the rule definitions every other component consumes.
// Format-specific parsing lives behind the Loader interface.
package config
