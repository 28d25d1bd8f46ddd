package designer

import "github.com/rendis/jobflow/pkg/schema"

// Change describes one applied mutation. NodeIDs lists every node whose
// state changed, including groups refitted as a side effect.
type Change struct {
	Type    string   `json:"type"`
	NodeIDs []string `json:"node_ids,omitempty"`
	EdgeIDs []string `json:"edge_ids,omitempty"`
	Removed []string `json:"removed,omitempty"` // nodes deleted by this change
}

// Listener receives editor notifications. Calls happen synchronously on the
// goroutine that performed the mutation, after the document is consistent.
type Listener interface {
	DocumentChanged(change Change)
	SelectionChanged(selected []string)
	ValidationRejected(err *schema.FlowError)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnDocumentChanged    func(Change)
	OnSelectionChanged   func([]string)
	OnValidationRejected func(*schema.FlowError)
}

func (f ListenerFuncs) DocumentChanged(change Change) {
	if f.OnDocumentChanged != nil {
		f.OnDocumentChanged(change)
	}
}

func (f ListenerFuncs) SelectionChanged(selected []string) {
	if f.OnSelectionChanged != nil {
		f.OnSelectionChanged(selected)
	}
}

func (f ListenerFuncs) ValidationRejected(err *schema.FlowError) {
	if f.OnValidationRejected != nil {
		f.OnValidationRejected(err)
	}
}
