package domain

import "strings"

// Confidence thresholds. Each one is a policy knob owned by a single constant.
const (
	// IntentConfidenceThreshold is the minimum intent confidence required to act without asking.
	IntentConfidenceThreshold = 0.75
	// EntityConfidenceThreshold is the minimum entity/scope resolution confidence required to act.
	EntityConfidenceThreshold = 0.80
	// ConfirmedConfidenceFloor is the confidence a classification is raised to once the user confirms it.
	ConfirmedConfidenceFloor = 0.80
	// FallbackConfidence is assigned to keyword matches of the rule-based classifier.
	FallbackConfidence = 0.6
	// FallbackUnclearConfidence is assigned when no keyword matched.
	FallbackUnclearConfidence = 0.3
)

// CreateNewOptionID is the reserved option id that lets the user escape a scope
// clarification by creating a new scope.
const CreateNewOptionID = "create-new"

// IntentCategory is the closed set of things a user can ask the canvas builder to do.
type IntentCategory string

const (
	IntentCreatePlaybook IntentCategory = "CreatePlaybook"
	IntentAddNode        IntentCategory = "AddNode"
	IntentRemoveNode     IntentCategory = "RemoveNode"
	IntentConnectNodes   IntentCategory = "ConnectNodes"
	IntentConfigureNode  IntentCategory = "ConfigureNode"
	IntentLinkScope      IntentCategory = "LinkScope"
	IntentCreateScope    IntentCategory = "CreateScope"
	IntentQueryStatus    IntentCategory = "QueryStatus"
	IntentModifyLayout   IntentCategory = "ModifyLayout"
	IntentUndo           IntentCategory = "Undo"
	IntentUnclear        IntentCategory = "Unclear"

	// IntentClarify marks results that are about the dialogue itself
	// (a cancelled or rejected clarification) rather than the canvas.
	IntentClarify IntentCategory = "Clarify"
)

// Categories returns the actionable categories in a stable order.
func Categories() []IntentCategory {
	return []IntentCategory{
		IntentCreatePlaybook,
		IntentAddNode,
		IntentRemoveNode,
		IntentConnectNodes,
		IntentConfigureNode,
		IntentLinkScope,
		IntentCreateScope,
		IntentQueryStatus,
		IntentModifyLayout,
		IntentUndo,
	}
}

// ParseIntentCategory normalizes provider spellings such as "add_node",
// "ADD-NODE" or "Add Node". Unknown values map to IntentUnclear.
func ParseIntentCategory(s string) IntentCategory {
	key := normalizeCategory(s)
	if key == "" {
		return IntentUnclear
	}
	for _, c := range append(Categories(), IntentUnclear, IntentClarify) {
		if normalizeCategory(string(c)) == key {
			return c
		}
	}
	return IntentUnclear
}

func normalizeCategory(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsActionable reports whether the category maps to a canvas change or answer.
func (c IntentCategory) IsActionable() bool {
	return c != IntentUnclear && c != IntentClarify && c != ""
}

// IntentAction tells the host what to do with a classification.
type IntentAction string

const (
	ActionNone                 IntentAction = "none"
	ActionExecute              IntentAction = "execute"
	ActionAnswer               IntentAction = "answer"
	ActionRequestClarification IntentAction = "request_clarification"
)

// ActionFor derives the default action of a category.
func ActionFor(c IntentCategory) IntentAction {
	switch c {
	case IntentQueryStatus:
		return ActionAnswer
	case IntentUnclear, IntentClarify:
		return ActionRequestClarification
	case "":
		return ActionNone
	default:
		return ActionExecute
	}
}
