package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/jobflow/pkg/schema"
)

// Format names an output format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatPNG     Format = "png"
	FormatSVG     Format = "svg"
)

// ParseFormat validates a user-supplied format name. Empty means mermaid.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatMermaid:
		return FormatMermaid, nil
	case FormatPNG, FormatSVG:
		return Format(s), nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unsupported diagram format %q", s).
		WithDetails(map[string]any{"supported": []string{string(FormatMermaid), string(FormatPNG), string(FormatSVG)}})
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces the model in the given format.
func Render(ctx context.Context, model *DiagramModel, format Format) ([]byte, error) {
	if format == FormatMermaid || format == "" {
		return []byte(RenderMermaid(model)), nil
	}
	return RenderImage(ctx, model, format)
}

// RenderImage renders a DiagramModel through graphviz as PNG or SVG.
func RenderImage(ctx context.Context, model *DiagramModel, format Format) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatPNG:
		gvFormat = graphviz.PNG
	case FormatSVG:
		gvFormat = graphviz.SVG
	default:
		_, err := ParseFormat(string(format))
		if err == nil {
			err = schema.NewErrorf(schema.ErrCodeValidation, "format %q is not an image format", format)
		}
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node)
	if err := addGraphvizNodes(graph, model.Nodes, gvNodes); err != nil {
		return nil, err
	}

	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr == nil && edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// addGraphvizNodes creates nodes in g. Expanded groups become clusters
// holding a header node that edges attach to.
func addGraphvizNodes(g *cgraph.Graph, nodes []*Node, gvNodes map[string]*cgraph.Node) error {
	for _, node := range nodes {
		if !node.IsSubgraph() {
			gvNode, err := g.CreateNodeByName(node.ID)
			if err != nil {
				return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
			}
			gvNode.SetLabel(firstLine(node.Label))
			applyNodeStyle(gvNode, node)
			gvNodes[node.ID] = gvNode
			continue
		}

		sub, err := g.CreateSubGraphByName("cluster_" + node.ID)
		if err != nil {
			return fmt.Errorf("diagram: create cluster %s: %w", node.ID, err)
		}
		sub.SetLabel(firstLine(node.Label))
		sub.SetStyle(cgraph.DashedGraphStyle)

		header, err := sub.CreateNodeByName(node.ID)
		if err != nil {
			return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		header.SetLabel(firstLine(node.Label))
		applyNodeStyle(header, node)
		gvNodes[node.ID] = header

		if err := addGraphvizNodes(sub, node.Children, gvNodes); err != nil {
			return err
		}
	}
	return nil
}

// applyNodeStyle sets graphviz attributes based on node kind.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	case NodeKindGroup:
		gvNode.SetShape(cgraph.HexagonShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if node.Disabled {
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetFontColor("#888888")
	}
}
