package expressions

import (
	"context"

	"github.com/itchyny/gojq"
)

// GoJQEngine evaluates jq programs. The form is the jq input, so
// `.method == "POST"` reads the method field. Programs run without access
// to the process environment.
type GoJQEngine struct {
	programs *programCache[*gojq.Code]
}

// NewGoJQEngine creates a jq engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newProgramCache(func(src string) (*gojq.Code, error) {
		q, err := gojq.Parse(src)
		if err != nil {
			return nil, exprError("jq", "parse", src, err)
		}
		code, err := gojq.Compile(q, gojq.WithEnvironLoader(func() []string { return nil }))
		if err != nil {
			return nil, exprError("jq", "compile", src, err)
		}
		return code, nil
	})}
}

func (e *GoJQEngine) Name() string { return "jq" }

// Evaluate runs a jq program over data. A single output is returned as is,
// several are collected into []any, none yields nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	out, err := e.EvaluateAll(ctx, expression, data)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// EvaluateAll runs a jq program over any JSON-shaped input and returns
// every output.
func (e *GoJQEngine) EvaluateAll(ctx context.Context, expression string, data any) ([]any, error) {
	code, err := e.programs.get(e.Name(), expression)
	if err != nil {
		return nil, err
	}
	var out []any
	iter := code.RunWithContext(ctx, jqValue(data))
	for v, ok := iter.Next(); ok; v, ok = iter.Next() {
		if err, isErr := v.(error); isErr {
			return nil, exprError("jq", "evaluation", expression, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Compile checks the expression and caches the program.
func (e *GoJQEngine) Compile(expression string) error {
	_, err := e.programs.get(e.Name(), expression)
	return err
}

// jqValue converts Go numbers and string slices into the float64 and []any
// shapes gojq accepts.
func jqValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = jqValue(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = jqValue(x)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	}
	return v
}

var (
	_ Engine   = (*GoJQEngine)(nil)
	_ Compiler = (*GoJQEngine)(nil)
)
