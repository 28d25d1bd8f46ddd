package expressions

import (
	"context"
	"testing"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoJQEngine(t *testing.T) {
	assert.Equal(t, "jq", NewGoJQEngine().Name())
}

// --- Evaluation ---

func TestGoJQ_FieldPredicate(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `.method == "POST"`, map[string]any{"method": "POST"})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestGoJQ_IntegersNormalized(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `.retries + 1`, map[string]any{"retries": 2})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out)
}

func TestGoJQ_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{"cells": []any{
		map[string]any{"id": "2", "shape": "start"},
		map[string]any{"id": "3", "shape": "end"},
	}}

	out, err := e.Evaluate(context.Background(), `.cells[].id`, data)
	require.NoError(t, err)
	assert.Equal(t, []any{"2", "3"}, out)

	out, err = e.Evaluate(context.Background(), `.cells[] | select(.shape == "Shell")`, data)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_EvaluateAll(t *testing.T) {
	e := NewGoJQEngine()

	all, err := e.EvaluateAll(context.Background(), `.[] | .id`, []any{
		map[string]any{"id": "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, all)

	all, err = e.EvaluateAll(context.Background(), `empty`, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// --- Errors ---

func TestGoJQ_ParseError(t *testing.T) {
	err := NewGoJQEngine().Compile(`.method ==`)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestGoJQ_RuntimeError(t *testing.T) {
	_, err := NewGoJQEngine().Evaluate(context.Background(), `.name | tonumber`, map[string]any{"name": "abc"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestGoJQ_Sandbox_NoEnvAccess(t *testing.T) {
	t.Setenv("JOBFLOW_SECRET", "hunter2")

	out, err := NewGoJQEngine().Evaluate(context.Background(), `$ENV.JOBFLOW_SECRET`, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNormalizeForJQ(t *testing.T) {
	in := map[string]any{
		"i":    1,
		"i64":  int64(2),
		"f32":  float32(1.5),
		"list": []any{3, "x"},
		"strs": []string{"a"},
	}
	assert.Equal(t, map[string]any{
		"i":    float64(1),
		"i64":  float64(2),
		"f32":  float64(1.5),
		"list": []any{float64(3), "x"},
		"strs": []any{"a"},
	}, jqValue(in))
	assert.Nil(t, jqValue(nil))
}
