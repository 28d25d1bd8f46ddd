package expressions

import (
	"context"
	"testing"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	v, err := NewEvaluator()
	require.NoError(t, err)
	return v
}

func TestEvaluator_Engines(t *testing.T) {
	assert.Equal(t, []string{"cel", "expr", "jq"}, newEvaluator(t).Engines())
}

func TestEvaluator_DefaultEngineIsExpr(t *testing.T) {
	e, err := newEvaluator(t).Engine("")
	require.NoError(t, err)
	assert.Equal(t, "expr", e.Name())
}

func TestEvaluator_UnknownEngine(t *testing.T) {
	_, err := newEvaluator(t).Engine("lua")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

// --- EvaluateBool ---

func TestEvaluator_EvaluateBool_AllEngines(t *testing.T) {
	v := newEvaluator(t)
	form := map[string]any{"method": "POST"}

	for _, p := range []schema.Predicate{
		{Expression: `method == "POST"`},
		{Engine: "cel", Expression: `form.method == "POST"`},
		{Engine: "jq", Expression: `.method == "POST"`},
	} {
		t.Run(p.Engine, func(t *testing.T) {
			ok, err := v.EvaluateBool(context.Background(), p, form)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestEvaluator_EvaluateBool_NonBool(t *testing.T) {
	_, err := newEvaluator(t).EvaluateBool(context.Background(),
		schema.Predicate{Expression: `method`}, map[string]any{"method": "GET"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
	assert.Contains(t, err.Error(), "want bool")
}

func TestEvaluator_Check(t *testing.T) {
	v := newEvaluator(t)
	assert.NoError(t, v.Check(schema.Predicate{Engine: "jq", Expression: `.a == 1`}))
	assert.Error(t, v.Check(schema.Predicate{Engine: "cel", Expression: `form.a ==`}))
	assert.Error(t, v.Check(schema.Predicate{Engine: "lua", Expression: `true`}))
}
