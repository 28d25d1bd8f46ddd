package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeInvalidNodeType   = "INVALID_NODE_TYPE"
	ErrCodeInvalidParent     = "INVALID_PARENT"
	ErrCodePortCapacity      = "PORT_CAPACITY_EXCEEDED"
	ErrCodeDuplicateEdge     = "DUPLICATE_EDGE"
	ErrCodeSelfConnection    = "SELF_CONNECTION"
	ErrCodeDirectionMismatch = "DIRECTION_MISMATCH"
	ErrCodeMalformedDocument = "MALFORMED_DOCUMENT"
	ErrCodeIDCollision       = "ID_COLLISION"

	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeNodeNotFound = "NODE_NOT_FOUND"
	ErrCodePortNotFound = "PORT_NOT_FOUND"
	ErrCodeNotResizable = "NOT_RESIZABLE"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeCycle        = "CYCLE_DETECTED"
	ErrCodeExpression   = "EXPRESSION_ERROR"
	ErrCodeStore        = "STORE_ERROR"
)

// FlowError is the structured error type for all designer operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *FlowError) WithNode(nodeID string) *FlowError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}

// HasCode reports whether err is a *FlowError carrying code.
func HasCode(err error, code string) bool {
	fe, ok := AsFlowError(err)
	return ok && fe.Code == code
}

// AsFlowError unwraps err to the first *FlowError in its chain.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
