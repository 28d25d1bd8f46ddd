package validation

import "github.com/rendis/jobflow/pkg/schema"

// DocumentValidator runs the load-time checks on a document:
// 1. Structural (JSON Schema)
// 2. Semantic (ids, node types, parents, edge endpoints)
// Connection rules are replayed by the editor itself.
type DocumentValidator struct {
	jsonSchema *JSONSchemaValidator
	types      TypeLookup
}

// NewDocumentValidator creates a DocumentValidator.
// types may be nil to skip node type checks.
func NewDocumentValidator(types TypeLookup) (*DocumentValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{
		jsonSchema: jsv,
		types:      types,
	}, nil
}

// Validate runs both stages and returns an aggregated result.
// Structural errors short-circuit the semantic stage.
func (dv *DocumentValidator) Validate(doc *schema.Document) *schema.ValidationResult {
	if doc == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeMalformedDocument, "document is nil")
		return r
	}

	result := validateStructural(dv.jsonSchema, doc)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(doc, dv.types))
	return result
}

// ValidateDocument satisfies the Validator interface.
func (dv *DocumentValidator) ValidateDocument(doc *schema.Document) error {
	return dv.Validate(doc).ToErrorCode(schema.ErrCodeMalformedDocument)
}

// ValidateDescriptor delegates to the underlying JSONSchemaValidator.
func (dv *DocumentValidator) ValidateDescriptor(desc *schema.NodeTypeDescriptor) error {
	return dv.jsonSchema.ValidateDescriptor(desc)
}

// validateStructural converts JSONSchemaValidator output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, doc *schema.Document) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDocument(doc)
	if err == nil {
		return result
	}

	flowErr, ok := schema.AsFlowError(err)
	if !ok {
		result.AddError("/", schema.ErrCodeMalformedDocument, err.Error())
		return result
	}

	if flowErr.Details != nil {
		if violations, ok := flowErr.Details["violations"].([]string); ok {
			for _, v := range violations {
				result.AddError("/", schema.ErrCodeMalformedDocument, v)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeMalformedDocument, flowErr.Message)
	return result
}
