// Package forms derives the editable data bag of a node from its type's field
// list: initial values, which fields are visible for the current values, and
// whether the values are acceptable.
package forms

import (
	"context"
	"fmt"

	"github.com/rendis/jobflow/internal/expressions"
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
)

// Engine evaluates field lists against form data.
type Engine struct {
	eval *expressions.Evaluator
}

// NewEngine creates a form Engine that resolves visibleWhen predicates with eval.
func NewEngine(eval *expressions.Evaluator) *Engine {
	return &Engine{eval: eval}
}

// Defaults builds the initial data bag for a new node of type nt: each
// field's default value, plus label set to the type name when no field
// provides one.
func (f *Engine) Defaults(nt *nodetypes.NodeType) map[string]any {
	form := make(map[string]any, len(nt.Fields)+1)
	for _, field := range nt.Fields {
		if field.Value != nil {
			form[field.Prop] = deepCopy(field.Value)
		}
	}
	if s, _ := form["label"].(string); s == "" {
		form["label"] = nt.Name
	}
	return form
}

// VisibleFields returns the fields of nt whose visibleWhen predicate holds
// for form. Fields without a predicate are always visible.
func (f *Engine) VisibleFields(ctx context.Context, nt *nodetypes.NodeType, form map[string]any) ([]schema.FieldSpec, error) {
	visible := make([]schema.FieldSpec, 0, len(nt.Fields))
	for _, field := range nt.Fields {
		ok, err := f.visible(ctx, field, form)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, field)
		}
	}
	return visible, nil
}

// CheckFields compiles every visibleWhen predicate without evaluating it.
func (f *Engine) CheckFields(fields []schema.FieldSpec) error {
	for _, field := range fields {
		if field.VisibleWhen == nil {
			continue
		}
		if err := f.eval.Check(*field.VisibleWhen); err != nil {
			return schema.NewErrorf(schema.ErrCodeExpression,
				"field %q: invalid visibleWhen predicate", field.Prop).WithCause(err)
		}
	}
	return nil
}

// ValidateDescriptor checks the predicates of a catalog entry's fields.
func (f *Engine) ValidateDescriptor(desc *schema.NodeTypeDescriptor) error {
	return f.CheckFields(desc.Fields)
}

// Validate checks form against the visible fields of nt. Hidden fields are
// not validated; keys without a field are ignored.
func (f *Engine) Validate(ctx context.Context, nt *nodetypes.NodeType, form map[string]any) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, field := range nt.Fields {
		ok, err := f.visible(ctx, field, form)
		if err != nil {
			result.AddError(fmt.Sprintf("fields.%s.visibleWhen", field.Prop), schema.ErrCodeExpression, err.Error())
			continue
		}
		if !ok {
			continue
		}
		validateField(field, form[field.Prop], result)
	}
	return result
}

func (f *Engine) visible(ctx context.Context, field schema.FieldSpec, form map[string]any) (bool, error) {
	if field.VisibleWhen == nil {
		return true, nil
	}
	return f.eval.EvaluateBool(ctx, *field.VisibleWhen, form)
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = deepCopy(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = deepCopy(v)
		}
		return out
	default:
		return v
	}
}
