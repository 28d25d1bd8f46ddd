package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELEngine evaluates Common Expression Language predicates. The form is
// bound to the variable `form`; use has(form.key) to test for a key.
type CELEngine struct {
	env      *cel.Env
	programs *programCache[cel.Program]
}

// NewCELEngine creates a CEL engine whose only variable is `form`.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(cel.Variable("form", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	e := &CELEngine{env: env}
	e.programs = newProgramCache(e.build)
	return e, nil
}

func (e *CELEngine) build(src string) (cel.Program, error) {
	ast, issues := e.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, exprError("cel", "compile", src, issues.Err())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, exprError("cel", "program", src, err)
	}
	return prg, nil
}

func (e *CELEngine) Name() string { return "cel" }

// Evaluate runs expression with data bound to `form`.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.programs.get(e.Name(), expression)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{"form": data})
	if err != nil {
		return nil, exprError("cel", "evaluation", expression, err)
	}
	return out.Value(), nil
}

// Compile checks the expression and caches the program.
func (e *CELEngine) Compile(expression string) error {
	_, err := e.programs.get(e.Name(), expression)
	return err
}

var (
	_ Engine   = (*CELEngine)(nil)
	_ Compiler = (*CELEngine)(nil)
)
