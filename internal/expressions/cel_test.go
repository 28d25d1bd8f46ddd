package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
}

// --- Form predicates ---

func TestCEL_FormAccess(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `form.method == "POST"`, map[string]any{"method": "POST"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `has(form.method) && form.method == "POST"`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestCEL_Operators(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	form := map[string]any{
		"timeout": 30,
		"tags":    []any{"etl", "nightly"},
		"driver":  "postgres",
	}

	tests := []struct {
		expr string
		want any
	}{
		{`form.timeout > 10`, true},
		{`"nightly" in form.tags`, true},
		{`form.driver.startsWith("post")`, true},
		{`size(form.tags) == 3`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, form)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCEL_NilForm(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `size(form) == 0`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

// --- Errors ---

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	err = e.Compile(`form.method ==`)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestCEL_UndeclaredVariable(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	err = e.Compile(`steps.fetch == 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestCEL_RuntimeError_MissingKey(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `form.method == "POST"`, map[string]any{})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestCEL_Concurrent(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), `form.n % 2 == 0`, map[string]any{"n": n})
			assert.NoError(t, err)
			assert.Equal(t, n%2 == 0, out)
		}(i)
	}
	wg.Wait()
}
