package config

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Store holds the evaluated pipeline parameters. It is immutable; overrides
// produce a new Store rather than mutating the original.
type Store struct {
	values map[string]cty.Value
}

// NewStore creates a Store from the given values. The map is copied.
func NewStore(values map[string]cty.Value) *Store {
	s := &Store{values: make(map[string]cty.Value, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Override returns a new Store with the given values layered on top of the
// receiver's. Overriding values always win.
func (s *Store) Override(values map[string]cty.Value) *Store {
	out := NewStore(s.values)
	for k, v := range values {
		out.values[k] = v
	}
	return out
}

// Has reports whether the key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns all parameter names in lexical order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the raw value for the key.
func (s *Store) Value(key string) (cty.Value, error) {
	v, ok := s.values[key]
	if !ok {
		return cty.NilVal, fmt.Errorf("param %q: %w", key, ErrMissingKey)
	}
	return v, nil
}

// String returns the value for the key converted to a string.
func (s *Store) String(key string) (string, error) {
	v, err := s.Value(key)
	if err != nil {
		return "", err
	}
	conv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("param %q: %w", key, err)
	}
	return conv.AsString(), nil
}

// Int returns the value for the key converted to an int.
func (s *Store) Int(key string) (int, error) {
	v, err := s.Value(key)
	if err != nil {
		return 0, err
	}
	var out int
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return out, nil
}

// StringList returns the value for the key as a list of strings. Scalar
// values are returned as a single-element list.
func (s *Store) StringList(key string) ([]string, error) {
	v, err := s.Value(key)
	if err != nil {
		return nil, err
	}
	if !v.Type().IsTupleType() && !v.Type().IsListType() && !v.Type().IsSetType() {
		single, err := s.String(key)
		if err != nil {
			return nil, err
		}
		return []string{single}, nil
	}

	var out []string
	for _, elem := range v.AsValueSlice() {
		conv, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		out = append(out, conv.AsString())
	}
	return out, nil
}

// Object packs all parameters into a single cty object value, suitable for
// exposing as the `params` variable in expression evaluation.
func (s *Store) Object() cty.Value {
	if len(s.values) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(s.values)
}
