package expressions

import (
	"context"
	"fmt"
	"sort"

	"github.com/rendis/jobflow/pkg/schema"
)

// DefaultEngine evaluates predicates that do not name an engine.
const DefaultEngine = "expr"

// Engine evaluates an expression against a form data bag.
// Three implementations: Expr (default), CEL and GoJQ.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Compiler is implemented by engines that can check an expression without
// evaluating it.
type Compiler interface {
	Compile(expression string) error
}

// Evaluator dispatches predicates to engines by name.
type Evaluator struct {
	engines map[string]Engine
}

// NewEvaluator creates an Evaluator with the expr, cel and jq engines.
func NewEvaluator() (*Evaluator, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewEvaluatorWith(NewExprEngine(), celEngine, NewGoJQEngine()), nil
}

// NewEvaluatorWith creates an Evaluator over the given engines.
func NewEvaluatorWith(engines ...Engine) *Evaluator {
	v := &Evaluator{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		v.engines[e.Name()] = e
	}
	return v
}

// Engines returns the registered engine names, sorted.
func (v *Evaluator) Engines() []string {
	names := make([]string, 0, len(v.engines))
	for name := range v.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine returns the engine registered under name. An empty name selects
// DefaultEngine.
func (v *Evaluator) Engine(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	e, ok := v.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "unknown expression engine %q", name).
			WithDetails(map[string]any{"engine": name, "available": v.Engines()})
	}
	return e, nil
}

// Check compiles the predicate without evaluating it.
func (v *Evaluator) Check(p schema.Predicate) error {
	e, err := v.Engine(p.Engine)
	if err != nil {
		return err
	}
	if c, ok := e.(Compiler); ok {
		return c.Compile(p.Expression)
	}
	return nil
}

// Evaluate runs the predicate's expression against form.
func (v *Evaluator) Evaluate(ctx context.Context, p schema.Predicate, form map[string]any) (any, error) {
	e, err := v.Engine(p.Engine)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, p.Expression, form)
}

// EvaluateBool runs the predicate and requires a boolean result.
func (v *Evaluator) EvaluateBool(ctx context.Context, p schema.Predicate, form map[string]any) (bool, error) {
	out, err := v.Evaluate(ctx, p, form)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"expression %q returned %s, want bool", p.Expression, typeName(out)).
			WithDetails(map[string]any{"expression": p.Expression})
	}
	return b, nil
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
