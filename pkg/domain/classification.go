package domain

import (
	"maps"
	"math"
)

// Classification is the structured interpretation of one user message.
// It is a value: helpers return modified copies.
type Classification struct {
	Category   IntentCategory    `json:"category"`
	Action     IntentAction      `json:"action"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	Payload    EntityPayload     `json:"payload"`
	Reasoning  string            `json:"reasoning,omitempty"`

	NeedsClarification    bool                  `json:"needs_clarification"`
	ClarificationQuestion string                `json:"clarification_question,omitempty"`
	Clarification         *ClarificationRequest `json:"clarification,omitempty"`
}

// EntityPayload carries the typed entities recognized in a message. All fields are optional.
type EntityPayload struct {
	Node       *NodeEntity       `json:"node,omitempty"`
	Connection *ConnectionEntity `json:"connection,omitempty"`
	Scope      *ScopeEntity      `json:"scope,omitempty"`
}

// IsEmpty reports whether no typed entity was recognized.
func (p EntityPayload) IsEmpty() bool {
	return p.Node == nil && p.Connection == nil && p.Scope == nil
}

// NodeEntity describes a node the user refers to or wants to create.
type NodeEntity struct {
	Type     string    `json:"type,omitempty"`
	Label    string    `json:"label,omitempty"`
	NodeID   string    `json:"node_id,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// ConnectionEntity describes an edge between two nodes.
type ConnectionEntity struct {
	SourceNodeID string `json:"source_node_id,omitempty"`
	TargetNodeID string `json:"target_node_id,omitempty"`
	SourceLabel  string `json:"source_label,omitempty"`
	TargetLabel  string `json:"target_label,omitempty"`
}

// ScopeEntity describes a skill, knowledge source or action linked to a node.
type ScopeEntity struct {
	Type   string `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clone returns a deep copy of the classification.
func (c Classification) Clone() Classification {
	out := c
	out.Entities = maps.Clone(c.Entities)
	out.Payload = c.Payload.clone()
	if c.Clarification != nil {
		req := c.Clarification.Clone()
		out.Clarification = &req
	}
	return out
}

func (p EntityPayload) clone() EntityPayload {
	var out EntityPayload
	if p.Node != nil {
		n := *p.Node
		if p.Node.Position != nil {
			pos := *p.Node.Position
			n.Position = &pos
		}
		out.Node = &n
	}
	if p.Connection != nil {
		conn := *p.Connection
		out.Connection = &conn
	}
	if p.Scope != nil {
		s := *p.Scope
		out.Scope = &s
	}
	return out
}

// WithConfidence returns a copy with the confidence clamped to [0,1].
func (c Classification) WithConfidence(v float64) Classification {
	out := c.Clone()
	out.Confidence = ClampConfidence(v)
	return out
}

// ClampConfidence bounds v to [0,1]. NaN becomes 0.
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// CanvasContext is a read-only snapshot of the canvas supplied by the host.
type CanvasContext struct {
	NodeCount      int           `json:"node_count"`
	EdgeCount      int           `json:"edge_count"`
	NodeTypes      []string      `json:"node_types,omitempty"`
	IsSaved        bool          `json:"is_saved"`
	SelectedNodeID string        `json:"selected_node_id,omitempty"`
	Nodes          []NodeSummary `json:"nodes,omitempty"`
}

// NodeSummary is the short description of a node present on the canvas.
type NodeSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// IsEmpty reports whether the canvas has no nodes.
func (c *CanvasContext) IsEmpty() bool {
	return c == nil || (c.NodeCount == 0 && len(c.Nodes) == 0)
}
