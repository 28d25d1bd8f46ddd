package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExprEngine(t *testing.T) {
	e := NewExprEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "expr", e.Name())
}

// --- Form predicates ---

func TestExpr_FieldEquality(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `method == "POST"`, map[string]any{"method": "POST"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `method == "POST"`, map[string]any{"method": "GET"})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestExpr_MissingFieldIsNil(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `method == "POST"`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, out)

	out, err = e.Evaluate(context.Background(), `method ?? "GET"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "GET", out)
}

func TestExpr_ValueTypeChangesBetweenCalls(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `retries > 0`, map[string]any{"retries": 3})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `retries > 0`, map[string]any{"retries": 0.0})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestExpr_Operators(t *testing.T) {
	e := NewExprEngine()
	form := map[string]any{
		"enabled": true,
		"format":  "csv",
		"headers": []any{"a", "b"},
	}

	tests := []struct {
		expr string
		want any
	}{
		{`enabled && format in ["csv", "tsv"]`, true},
		{`len(headers) == 2`, true},
		{`format startsWith "c"`, true},
		{`!enabled`, false},
		{`enabled ? "on" : "off"`, "on"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, form)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

// --- Errors ---

func TestExpr_EmptyExpression(t *testing.T) {
	_, err := NewExprEngine().Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestExpr_CompileError(t *testing.T) {
	e := NewExprEngine()
	err := e.Compile(`method ==`)
	require.Error(t, err)

	fe, ok := schema.AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeExpression, fe.Code)
	assert.Equal(t, `method ==`, fe.Details["expression"])
}

// --- Caching ---

func TestExpr_ProgramCaching(t *testing.T) {
	e := NewExprEngine()
	require.NoError(t, e.Compile(`a == 1`))
	require.NoError(t, e.Compile(`a == 1`))

	assert.Equal(t, 1, e.programs.len())
}

func TestExpr_Concurrent(t *testing.T) {
	e := NewExprEngine()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), `n % 2 == 0`, map[string]any{"n": n})
			assert.NoError(t, err)
			assert.Equal(t, n%2 == 0, out)
		}(i)
	}
	wg.Wait()
}
