package validation

import (
	"fmt"

	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
)

// validateSemantic checks cross-cell references: unique ids, registered node
// types, parent links (existence, group kind, no cycles), collapsed flags only
// on groups, and edge endpoints naming existing nodes and ports.
func validateSemantic(doc *schema.Document, types TypeLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	cells := make(map[string]int, len(doc.Cells))
	for i, c := range doc.Cells {
		if prev, dup := cells[c.ID]; dup {
			result.AddError(fmt.Sprintf("cells[%d].id", i), schema.ErrCodeIDCollision,
				fmt.Sprintf("id %q already used by cells[%d]", c.ID, prev))
			continue
		}
		cells[c.ID] = i
	}

	nodeTypes := make(map[string]*nodetypes.NodeType)
	for i, c := range doc.Cells {
		if c.IsEdge() || types == nil {
			continue
		}
		nt, err := types.Get(c.Shape)
		if err != nil {
			result.AddError(fmt.Sprintf("cells[%d].shape", i), schema.ErrCodeInvalidNodeType,
				fmt.Sprintf("node type %q not registered", c.Shape))
			continue
		}
		nodeTypes[c.ID] = nt
		if c.Collapsed && !nt.IsGroup() {
			result.AddError(fmt.Sprintf("cells[%d].collapsed", i), schema.ErrCodeMalformedDocument,
				fmt.Sprintf("node %q of leaf type %q cannot be collapsed", c.ID, c.Shape))
		}
	}

	for i, c := range doc.Cells {
		path := fmt.Sprintf("cells[%d]", i)
		if c.IsEdge() {
			validateEdgeRefs(doc, c, path, cells, nodeTypes, types != nil, result)
			continue
		}
		if c.ParentID != "" {
			validateParentRef(doc, c, path, cells, nodeTypes, types != nil, result)
		}
	}

	validateParentCycles(doc, result)
	return result
}

func validateParentRef(doc *schema.Document, c schema.Cell, path string, cells map[string]int,
	nodeTypes map[string]*nodetypes.NodeType, typed bool, result *schema.ValidationResult) {
	if c.ParentID == c.ID {
		result.AddError(path+".parentId", schema.ErrCodeInvalidParent,
			fmt.Sprintf("node %q is its own parent", c.ID))
		return
	}
	idx, ok := cells[c.ParentID]
	if !ok {
		result.AddError(path+".parentId", schema.ErrCodeNodeNotFound,
			fmt.Sprintf("parent %q does not exist", c.ParentID))
		return
	}
	if doc.Cells[idx].IsEdge() {
		result.AddError(path+".parentId", schema.ErrCodeInvalidParent,
			fmt.Sprintf("parent %q is an edge", c.ParentID))
		return
	}
	if nt, ok := nodeTypes[c.ParentID]; typed && ok && !nt.IsGroup() {
		result.AddError(path+".parentId", schema.ErrCodeInvalidParent,
			fmt.Sprintf("parent %q of type %q is not a group", c.ParentID, nt.ID))
	}
}

func validateEdgeRefs(doc *schema.Document, c schema.Cell, path string, cells map[string]int,
	nodeTypes map[string]*nodetypes.NodeType, typed bool, result *schema.ValidationResult) {
	for _, end := range []struct {
		name string
		ep   *schema.Endpoint
	}{{"source", c.Source}, {"target", c.Target}} {
		if end.ep == nil {
			continue
		}
		idx, ok := cells[end.ep.NodeID]
		if !ok || doc.Cells[idx].IsEdge() {
			result.AddError(fmt.Sprintf("%s.%s.nodeId", path, end.name), schema.ErrCodeNodeNotFound,
				fmt.Sprintf("edge %q %s node %q does not exist", c.ID, end.name, end.ep.NodeID))
			continue
		}
		nt, ok := nodeTypes[end.ep.NodeID]
		if !typed || !ok {
			continue
		}
		if _, ok := nt.Port(end.ep.PortID); !ok {
			result.AddError(fmt.Sprintf("%s.%s.portId", path, end.name), schema.ErrCodePortNotFound,
				fmt.Sprintf("edge %q %s port %q not declared by type %q", c.ID, end.name, end.ep.PortID, nt.ID))
		}
	}
}

// validateParentCycles walks every parent chain looking for loops.
func validateParentCycles(doc *schema.Document, result *schema.ValidationResult) {
	parent := make(map[string]string)
	for _, c := range doc.Cells {
		if !c.IsEdge() && c.ParentID != "" && c.ParentID != c.ID {
			parent[c.ID] = c.ParentID
		}
	}

	reported := make(map[string]bool)
	for i, c := range doc.Cells {
		if c.IsEdge() || reported[c.ID] {
			continue
		}
		seen := map[string]bool{c.ID: true}
		for p, ok := parent[c.ID]; ok; p, ok = parent[p] {
			if seen[p] {
				for id := range seen {
					reported[id] = true
				}
				result.AddError(fmt.Sprintf("cells[%d].parentId", i), schema.ErrCodeInvalidParent,
					fmt.Sprintf("parent chain of node %q loops", c.ID))
				break
			}
			seen[p] = true
		}
	}
}
