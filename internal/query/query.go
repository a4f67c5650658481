// Package query compiles filter expressions over document fields into
// document predicates.
//
// An expression sees every top level field of the document as a variable, e.g.
//
//	listPosition >= 2 && label == "x"
//	id in ["01J...", "01K..."]
//
// Numeric fields are exposed as float64 so comparisons against literals work
// without conversions.
package query

import (
	"fmt"

	"gihan9a/positionmodeler/internal/document"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-json"
)

// Filter is a compiled boolean expression
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses and type checks source as a boolean expression
func Compile(source string) (*Filter, error) {
	program, err := expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", source, err)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter against doc
func (f *Filter) Match(doc document.Document) (bool, error) {
	out, err := expr.Run(f.program, env(doc))
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q: %w", f.source, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Predicate adapts the filter for the document store. Documents the expression
// cannot be evaluated against do not match.
func (f *Filter) Predicate() document.Predicate {
	return func(doc document.Document) bool {
		matched, err := f.Match(doc)
		return err == nil && matched
	}
}

func env(doc document.Document) map[string]any {
	vars := make(map[string]any, len(doc))
	for key, value := range doc {
		vars[key] = plain(value)
	}
	return vars
}

// plain converts json.Number (at any depth) to float64
func plain(value any) any {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = plain(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = plain(inner)
		}
		return out
	default:
		return value
	}
}
