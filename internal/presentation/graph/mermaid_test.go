package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/canvasbuilder/internal/presentation/graph"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	canvas := &domain.CanvasContext{
		NodeCount: 3,
		Nodes: []domain.NodeSummary{
			{ID: "start", Type: "start", Label: "Start"},
			{ID: "n-1", Type: "approval", Label: "Legal \"sign off\""},
			{ID: "n2", Type: "task", Label: "Draft"},
		},
	}

	tests := []struct {
		name        string
		ops         []domain.CanvasOperation
		overlay     *graph.Overlay
		contains    []string
		notContains []string
	}{
		{
			name: "Shapes",
			contains: []string{
				"graph TD\n",
				"start((\"Start <br/> start\"))",
				"n_1{\"Legal 'sign off' <br/> approval\"}",
				"n2[\"Draft <br/> task\"]",
			},
			notContains: []string{"classDef"},
		},
		{
			name: "Added Node And Edge",
			ops: []domain.CanvasOperation{
				{ID: "op1", Op: domain.OpAddNode, NodeID: "n3", NodeType: "integration", Label: "Notify"},
				{ID: "op2", Op: domain.OpAddEdge, SourceID: "n2", TargetID: "n3", Label: "done"},
			},
			contains: []string{
				"n3[[\"Notify <br/> integration\"]]",
				"n2 -. \"done\" .-> n3",
				"class n3 added;",
			},
		},
		{
			name: "Added Node Uses Operation ID",
			ops: []domain.CanvasOperation{
				{ID: "op-9", Op: domain.OpAddNode, NodeType: "task", SourceID: "start"},
			},
			contains: []string{
				"op_9[\"op-9 <br/> task\"]",
				"start -.-> op_9",
			},
		},
		{
			name: "Removed And Selected",
			ops: []domain.CanvasOperation{
				{ID: "op1", Op: domain.OpRemoveNode, NodeID: "n2"},
			},
			overlay: &graph.Overlay{SelectedNode: "n-1"},
			contains: []string{
				"class n2 removed;",
				"class n_1 selected;",
			},
		},
		{
			name: "Update Renames",
			ops: []domain.CanvasOperation{
				{ID: "op1", Op: domain.OpUpdateNode, NodeID: "n2", Label: "Final Draft"},
			},
			contains: []string{"n2[\"Final Draft <br/> task\"]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(canvas, tt.ops, tt.overlay)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestGenerateMermaid_NilCanvas(t *testing.T) {
	out := graph.GenerateMermaid(nil, nil, nil)
	assert.Equal(t, "graph TD\n", out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
