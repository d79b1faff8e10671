package hcl

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

// ExpandFunc exposes pattern.Expand as the `expand` function inside pipeline
// expressions: expand("out/{sample}.txt", { sample = params.samples }).
var ExpandFunc = function.New(&function.Spec{
	Description: "Expands a path template's wildcards against named value lists, one path per combination.",
	Params: []function.Parameter{
		{Name: "template", Type: cty.String},
		{Name: "values", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.List(cty.String)),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		template := args[0].AsString()
		obj := args[1]
		if !obj.Type().IsObjectType() && !obj.Type().IsMapType() {
			return cty.NilVal, fmt.Errorf("values must be an object of value lists, got %s", obj.Type().FriendlyName())
		}

		values := make(map[string][]string)
		for it := obj.ElementIterator(); it.Next(); {
			k, v := it.Element()
			list, err := toStringSlice(v)
			if err != nil {
				return cty.NilVal, fmt.Errorf("values for %q: %w", k.AsString(), err)
			}
			values[k.AsString()] = list
		}

		paths := pattern.Expand(template, values)
		if len(paths) == 0 {
			return cty.ListValEmpty(cty.String), nil
		}
		elems := make([]cty.Value, len(paths))
		for i, p := range paths {
			elems[i] = cty.StringVal(p)
		}
		return cty.ListVal(elems), nil
	},
})

// toStringSlice converts a cty collection, or a single scalar, into a string
// slice in element order.
func toStringSlice(v cty.Value) ([]string, error) {
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, err
		}
		return []string{s.AsString()}, nil
	}

	out := make([]string, 0, v.LengthInt())
	for _, elem := range v.AsValueSlice() {
		s, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, err
		}
		out = append(out, s.AsString())
	}
	return out, nil
}
