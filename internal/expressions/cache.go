package expressions

import (
	"sync"

	"github.com/rendis/jobflow/pkg/schema"
)

// programCache memoises compiled expressions by source text. Compilation
// happens outside the lock; concurrent misses on the same text may compile
// twice and the first stored program wins.
type programCache[P any] struct {
	mu       sync.RWMutex
	programs map[string]P
	compile  func(expression string) (P, error)
}

func newProgramCache[P any](compile func(string) (P, error)) *programCache[P] {
	return &programCache[P]{programs: make(map[string]P), compile: compile}
}

func (c *programCache[P]) get(engine, expression string) (P, error) {
	var zero P
	if expression == "" {
		return zero, schema.NewErrorf(schema.ErrCodeExpression, "empty %s expression", engine)
	}

	c.mu.RLock()
	p, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := c.compile(expression)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.programs[expression]; ok {
		return prev, nil
	}
	c.programs[expression] = p
	return p, nil
}

func (c *programCache[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// exprError wraps an engine failure at the given stage (parse, compile,
// evaluation) as an EXPRESSION_ERROR carrying the expression text.
func exprError(engine, stage, expression string, err error) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s %s failed for %q: %s", engine, stage, expression, err).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}
