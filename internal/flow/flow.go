// Package flow compiles a designer document into the execution model the
// runtime consumes: task nodes with their lifted settings, conditional edges,
// and the start/end entry points.
package flow

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/rendis/jobflow/internal/validation"
	"github.com/rendis/jobflow/pkg/schema"
)

// Node is one task of a compiled flow.
type Node struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	ParentID        string         `json:"parentId,omitempty"`
	ResultName      string         `json:"resultName,omitempty"`
	CacheTime       int            `json:"cacheTime"`
	ExceptionHandle string         `json:"exceptionHandle,omitempty"`
	Disabled        bool           `json:"disabled"`
	LogLevel        string         `json:"logLevel,omitempty"`
	Properties      map[string]any `json:"properties"`
}

// ResultKey is the key the node's output is stored under.
func (n Node) ResultKey() string {
	if n.ResultName == "" {
		return n.ID
	}
	return n.ResultName
}

// Edge is a dependency between two tasks, taken only when Expression holds.
type Edge struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Expression   string `json:"expression,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceAnchor string `json:"sourceAnchor"`
	TargetAnchor string `json:"targetAnchor"`
}

// Flow is a compiled document.
type Flow struct {
	ID           string                   `json:"id,omitempty"`
	Name         string                   `json:"name,omitempty"`
	Description  string                   `json:"description,omitempty"`
	Nodes        []Node                   `json:"nodes"`
	Edges        []Edge                   `json:"edges"`
	StartNodeID  string                   `json:"startNodeId"`
	EndNodeID    string                   `json:"endNodeId"`
	ReturnResult bool                     `json:"returnResult"`
	ResultType   string                   `json:"resultType,omitempty"`
	Warnings     []schema.ValidationIssue `json:"warnings,omitempty"`
}

// Node looks up a compiled node by id.
func (f *Flow) Node(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Compiler turns documents into flows.
type Compiler struct {
	types     validation.TypeLookup
	validator *validation.DocumentValidator
}

// NewCompiler creates a Compiler resolving node types through types.
func NewCompiler(types validation.TypeLookup) (*Compiler, error) {
	v, err := validation.NewDocumentValidator(types)
	if err != nil {
		return nil, err
	}
	return &Compiler{types: types, validator: v}, nil
}

// Compile validates doc and converts it. The document must hold exactly one
// start and one end node, every edge must run from an out port to an in
// port, and the task graph must be acyclic. Nodes unreachable from start
// are reported as warnings.
func (c *Compiler) Compile(doc *schema.Document) (*Flow, error) {
	if err := c.validator.ValidateDocument(doc); err != nil {
		return nil, err
	}

	result := &schema.ValidationResult{}
	f := &Flow{
		Nodes: make([]Node, 0, len(doc.Cells)),
		Edges: []Edge{},
	}

	var ids []string
	var links []validation.Link
	for i, cell := range doc.Cells {
		if cell.IsEdge() {
			continue
		}
		n := c.node(cell)
		switch cell.Shape {
		case schema.TypeStart:
			if f.StartNodeID != "" {
				result.AddError(fmt.Sprintf("cells[%d]", i), schema.ErrCodeValidation, "flow has more than one start node")
			}
			f.StartNodeID = cell.ID
		case schema.TypeEnd:
			if f.EndNodeID != "" {
				result.AddError(fmt.Sprintf("cells[%d]", i), schema.ErrCodeValidation, "flow has more than one end node")
			}
			f.EndNodeID = cell.ID
			f.ReturnResult, _ = n.Properties["returnResult"].(bool)
			f.ResultType, _ = n.Properties["resultType"].(string)
		}
		f.Nodes = append(f.Nodes, n)
		ids = append(ids, cell.ID)
		if cell.ParentID != "" {
			links = append(links, validation.Link{From: cell.ParentID, To: cell.ID})
		}
	}
	if f.StartNodeID == "" {
		result.AddError("cells", schema.ErrCodeValidation, "flow has no start node")
	}
	if f.EndNodeID == "" {
		result.AddError("cells", schema.ErrCodeValidation, "flow has no end node")
	}

	for i, cell := range doc.Cells {
		if !cell.IsEdge() {
			continue
		}
		if err := c.checkDirection(doc, cell); err != nil {
			result.AddError(fmt.Sprintf("cells[%d]", i), schema.ErrCodeDirectionMismatch, err.Error())
			continue
		}
		e := Edge{
			ID:           cell.ID,
			Name:         cell.Label,
			Source:       cell.Source.NodeID,
			Target:       cell.Target.NodeID,
			SourceAnchor: cell.Source.PortID,
			TargetAnchor: cell.Target.PortID,
		}
		if e.Name == "" {
			e.Name, _ = cell.Data["label"].(string)
		}
		e.Expression, _ = cell.Data["expr"].(string)
		f.Edges = append(f.Edges, e)
		links = append(links, validation.Link{From: e.Source, To: e.Target})
	}
	if err := result.ToError(); err != nil {
		return nil, err
	}

	dag := validation.CheckDAG(ids, links, []string{f.StartNodeID})
	if err := dag.ToErrorCode(schema.ErrCodeCycle); err != nil {
		return nil, err
	}
	f.Warnings = dag.Warnings
	return f, nil
}

func (c *Compiler) node(cell schema.Cell) Node {
	n := Node{
		ID:         cell.ID,
		Name:       cell.Shape,
		Type:       cell.Shape,
		ParentID:   cell.ParentID,
		CacheTime:  -1,
		Properties: maps.Clone(cell.Data),
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	if nt, err := c.types.Get(cell.Shape); err == nil && nt.Name != "" {
		n.Name = nt.Name
	}

	form := n.Properties
	if label, ok := form["label"].(string); ok && label != "" {
		n.Name = label
	}
	n.LogLevel, _ = form["logLevel"].(string)
	if enabled, ok := form["enabled"].(bool); ok {
		n.Disabled = !enabled
	}
	n.CacheTime = cacheTime(form["cacheTime"])
	n.ExceptionHandle, _ = form["ignoreSimpleException"].(string)
	n.ResultName, _ = form["datakey"].(string)
	return n
}

// cacheTime reads the cache duration in seconds. Missing, malformed or
// non-positive values disable caching (-1).
func cacheTime(v any) int {
	var secs int
	switch val := v.(type) {
	case float64:
		secs = int(val)
	case int:
		secs = val
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return -1
		}
		secs = n
	default:
		return -1
	}
	if secs < 1 {
		return -1
	}
	return secs
}

func (c *Compiler) checkDirection(doc *schema.Document, cell schema.Cell) error {
	for _, end := range []struct {
		ep   *schema.Endpoint
		want schema.PortGroup
	}{{cell.Source, schema.PortOut}, {cell.Target, schema.PortIn}} {
		node, _ := doc.Find(end.ep.NodeID)
		nt, err := c.types.Get(node.Shape)
		if err != nil {
			return err
		}
		port, _ := nt.Port(end.ep.PortID)
		if port.Group != end.want {
			return fmt.Errorf("edge %q: port %s.%s is an %s port, want %s", cell.ID, end.ep.NodeID, end.ep.PortID, port.Group, end.want)
		}
	}
	return nil
}
