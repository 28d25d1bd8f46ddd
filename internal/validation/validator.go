package validation

import (
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
)

// TypeLookup resolves node type ids. *nodetypes.Registry satisfies it.
type TypeLookup interface {
	Get(id string) (*nodetypes.NodeType, error)
}

// Validator checks documents and catalog descriptors before they reach the editor.
type Validator interface {
	ValidateDocument(doc *schema.Document) error
	ValidateDescriptor(desc *schema.NodeTypeDescriptor) error
}
