package config

import "context"

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads pipeline definitions from the given paths, applies the raw
	// key=value overrides at highest priority, and translates everything
	// into the format-agnostic model.
	Load(ctx context.Context, overrides map[string]string, paths ...string) (*Model, error)
}
