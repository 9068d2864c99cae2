package dialogue

import (
	"slices"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

type slot int

const (
	slotNode slot = iota
	slotSource
	slotTarget
	slotScope
)

// reference is an entity a classification names by text rather than by id.
type reference struct {
	slot          slot
	text          string
	scopeCategory string
}

func (r reference) isScope() bool { return r.slot == slotScope }

// unresolved lists the references of cls that still need an id, in the order
// they are resolved and bound.
func unresolved(cls domain.Classification, canvas *domain.CanvasContext) []reference {
	var refs []reference
	p := cls.Payload

	switch cls.Category {
	case domain.IntentRemoveNode, domain.IntentConfigureNode:
		if p.Node == nil {
			break
		}
		if text := nodeReference(p.Node.NodeID, p.Node.Label, canvas); text != "" {
			refs = append(refs, reference{slot: slotNode, text: text})
		}

	case domain.IntentConnectNodes:
		if p.Connection == nil {
			break
		}
		if text := nodeReference(p.Connection.SourceNodeID, p.Connection.SourceLabel, canvas); text != "" {
			refs = append(refs, reference{slot: slotSource, text: text})
		}
		if text := nodeReference(p.Connection.TargetNodeID, p.Connection.TargetLabel, canvas); text != "" {
			refs = append(refs, reference{slot: slotTarget, text: text})
		}

	case domain.IntentLinkScope:
		if p.Scope == nil || p.Scope.Name == "" || cls.Entities[scopeIDKey] != "" {
			break
		}
		refs = append(refs, reference{slot: slotScope, text: p.Scope.Name, scopeCategory: p.Scope.Type})
	}
	return refs
}

const (
	nodeIDKey   = "nodeId"
	sourceIDKey = "sourceNodeId"
	targetIDKey = "targetNodeId"
	scopeIDKey  = "scopeId"
)

// nodeReference returns the text to resolve for a node slot, or "" when the
// slot already holds an id the canvas knows. Providers sometimes put a label
// in the id field; an id the canvas does not list is treated as a label.
func nodeReference(id, label string, canvas *domain.CanvasContext) string {
	if id != "" {
		if knownNode(canvas, id) {
			return ""
		}
		return id
	}
	return label
}

func knownNode(canvas *domain.CanvasContext, id string) bool {
	if canvas == nil || len(canvas.Nodes) == 0 {
		return true
	}
	return slices.ContainsFunc(canvas.Nodes, func(n domain.NodeSummary) bool { return n.ID == id })
}

// bind writes a resolved id into the slot of cls named by ref.
func bind(cls *domain.Classification, ref reference, id, label string) {
	if cls.Entities == nil {
		cls.Entities = make(map[string]string)
	}
	p := &cls.Payload

	switch ref.slot {
	case slotNode:
		if p.Node == nil {
			p.Node = &domain.NodeEntity{}
		}
		p.Node.NodeID = id
		if p.Node.Label == "" {
			p.Node.Label = label
		}
		cls.Entities[nodeIDKey] = id

	case slotSource, slotTarget:
		if p.Connection == nil {
			p.Connection = &domain.ConnectionEntity{}
		}
		if ref.slot == slotSource {
			p.Connection.SourceNodeID = id
			p.Connection.SourceLabel = label
			cls.Entities[sourceIDKey] = id
		} else {
			p.Connection.TargetNodeID = id
			p.Connection.TargetLabel = label
			cls.Entities[targetIDKey] = id
		}

	case slotScope:
		if p.Scope == nil {
			p.Scope = &domain.ScopeEntity{}
		}
		p.Scope.Name = label
		cls.Entities[scopeIDKey] = id
	}
}

// selectionBinding applies the option the user picked for a pending entity or
// scope question directly to the classification that raised it. It reports
// false when the response is not such a selection.
func selectionBinding(session domain.SessionState, resp *domain.ClarificationResponse, canvas *domain.CanvasContext) (domain.Classification, bool) {
	pending, last := session.PendingClarification, session.LastClassification
	if resp.Type != domain.ResponseOptionSelected || pending == nil || last == nil {
		return domain.Classification{}, false
	}
	if pending.Type != domain.ClarifyEntity && pending.Type != domain.ClarifyScope {
		return domain.Classification{}, false
	}
	opt, ok := pending.Option(resp.SelectedOptionID)
	if !ok {
		return domain.Classification{}, false
	}

	cls := last.Clone()
	refs := unresolved(cls, canvas)
	if len(refs) == 0 {
		return domain.Classification{}, false
	}

	if opt.ID == domain.CreateNewOptionID {
		cls.Category = domain.IntentCreateScope
		cls.Action = domain.ActionFor(domain.IntentCreateScope)
	} else {
		bind(&cls, refs[0], opt.ID, opt.Label)
	}

	cls.Confidence = max(domain.ClampConfidence(cls.Confidence), domain.ConfirmedConfidenceFloor)
	cls.NeedsClarification = false
	cls.ClarificationQuestion = ""
	cls.Clarification = nil
	cls.Reasoning = "Selected by user: " + opt.Label
	return cls, true
}
