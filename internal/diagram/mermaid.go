package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", model.Title)
	}

	writeMermaidNodes(&b, model.Nodes, 1)

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", mermaidSafeID(edge.From), label, mermaidSafeID(edge.To))
	}

	var disabled []string
	model.Walk(func(n *Node, _ int) {
		if n.Disabled {
			disabled = append(disabled, mermaidSafeID(n.ID))
		}
	})
	if len(disabled) > 0 {
		b.WriteString("\n")
		b.WriteString("    classDef disabled fill:#e8e8e8,stroke:#999,color:#888,stroke-dasharray:5 5\n")
		fmt.Fprintf(&b, "    class %s disabled\n", strings.Join(disabled, ","))
	}

	return b.String()
}

func writeMermaidNodes(b *strings.Builder, nodes []*Node, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, n := range nodes {
		if n.IsSubgraph() {
			fmt.Fprintf(b, "%ssubgraph %s[%q]\n", indent, mermaidSafeID(n.ID), mermaidEscapeLabel(firstLine(n.Label)))
			writeMermaidNodes(b, n.Children, depth+1)
			fmt.Fprintf(b, "%send\n", indent)
			continue
		}
		fmt.Fprintf(b, "%s%s\n", indent, mermaidNodeDef(n))
	}
}

// mermaidNodeDef returns a Mermaid node definition with the shape for its kind.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindGroup:
		return fmt.Sprintf("%s[[%q]]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID prefixes ids, which are usually numeric, and replaces
// characters Mermaid does not accept in identifiers.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return "n" + r.Replace(id)
}

// mermaidEscapeLabel neutralises quotes and pipes inside labels.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}
