package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// Overlay marks canvas nodes to highlight on the preview.
type Overlay struct {
	SelectedNode string
}

// GenerateMermaid produces a Mermaid flowchart previewing the canvas after ops
// are applied. Node shapes follow the node type:
// - start/end: ((Circle))
// - decision/approval: {Rhombus}
// - integration/tool: [[Subroutine]]
// - Default: [Rectangle]
// Added nodes and edges are styled as "added", removed nodes as "removed".
func GenerateMermaid(canvas *domain.CanvasContext, ops []domain.CanvasOperation, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	type entry struct {
		id, typ, label string
	}
	var order []string
	nodes := make(map[string]*entry)
	upsert := func(id, typ, label string) *entry {
		if e, ok := nodes[id]; ok {
			if typ != "" {
				e.typ = typ
			}
			if label != "" {
				e.label = label
			}
			return e
		}
		e := &entry{id: id, typ: typ, label: label}
		nodes[id] = e
		order = append(order, id)
		return e
	}

	if canvas != nil {
		for _, n := range canvas.Nodes {
			upsert(n.ID, n.Type, n.Label)
		}
	}

	added := make(map[string]bool)
	removed := make(map[string]bool)
	var edges []string
	for _, op := range ops {
		switch op.Op {
		case domain.OpAddNode:
			id := op.NodeID
			if id == "" {
				id = op.ID
			}
			upsert(id, op.NodeType, op.Label)
			added[id] = true
			if op.SourceID != "" {
				edges = append(edges, fmt.Sprintf("    %s -.-> %s\n", sanitizeMermaidID(op.SourceID), sanitizeMermaidID(id)))
			}
		case domain.OpUpdateNode:
			if op.NodeID != "" {
				upsert(op.NodeID, op.NodeType, op.Label)
			}
		case domain.OpRemoveNode:
			if op.NodeID != "" {
				upsert(op.NodeID, "", "")
				removed[op.NodeID] = true
			}
		case domain.OpAddEdge:
			if op.SourceID == "" || op.TargetID == "" {
				continue
			}
			arrow := "-.->"
			if op.Label != "" {
				arrow = fmt.Sprintf("-. \"%s\" .->", escapeLabel(op.Label))
			}
			edges = append(edges, fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(op.SourceID), arrow, sanitizeMermaidID(op.TargetID)))
		}
	}

	for _, id := range order {
		e := nodes[id]
		opener, closer := shape(e.typ)
		label := e.label
		if label == "" {
			label = e.id
		}
		if e.typ != "" {
			label = fmt.Sprintf("%s <br/> %s", escapeLabel(label), e.typ)
		} else {
			label = escapeLabel(label)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(e.id), opener, label, closer)
	}
	for _, edge := range edges {
		sb.WriteString(edge)
	}

	if len(added) == 0 && len(removed) == 0 && (overlay == nil || overlay.SelectedNode == "") {
		return sb.String()
	}

	sb.WriteString("\n    %% Preview Styles\n")
	// Black text keeps contrast on light fills in both themes.
	sb.WriteString("    classDef added fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef removed fill:#ffebee,stroke:#c62828,stroke-dasharray:4 2,color:#000;\n")
	sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	for _, id := range order {
		switch {
		case removed[id]:
			fmt.Fprintf(&sb, "    class %s removed;\n", sanitizeMermaidID(id))
		case added[id]:
			fmt.Fprintf(&sb, "    class %s added;\n", sanitizeMermaidID(id))
		}
	}
	if overlay != nil && overlay.SelectedNode != "" && !removed[overlay.SelectedNode] {
		fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.SelectedNode))
	}

	return sb.String()
}

func shape(nodeType string) (string, string) {
	switch strings.ToLower(nodeType) {
	case "start", "end":
		return "((", "))"
	case "decision", "approval", "condition":
		return "{", "}"
	case "integration", "tool":
		return "[[", "]]"
	}
	return "[", "]"
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
