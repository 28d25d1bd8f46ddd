package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine evaluates expr-lang expressions. Form keys are top-level
// variables; a key absent from the form evaluates to nil, so
// `method == "POST"` is simply false on an empty form.
type ExprEngine struct {
	programs *programCache[*vm.Program]
}

// NewExprEngine creates an expr engine. Programs are compiled against an
// untyped environment so one program serves forms whose values change type
// between calls.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newProgramCache(func(src string) (*vm.Program, error) {
		prg, err := expr.Compile(src, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, exprError("expr", "compile", src, err)
		}
		return prg, nil
	})}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate runs expression with the form keys as variables.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.programs.get(e.Name(), expression)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	out, err := vm.Run(prg, data)
	if err != nil {
		return nil, exprError("expr", "evaluation", expression, err)
	}
	return out, nil
}

// Compile checks the expression and caches the program.
func (e *ExprEngine) Compile(expression string) error {
	_, err := e.programs.get(e.Name(), expression)
	return err
}

var (
	_ Engine   = (*ExprEngine)(nil)
	_ Compiler = (*ExprEngine)(nil)
)
